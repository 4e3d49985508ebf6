package arbiter

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/outreach/internal/store"
	"github.com/nextlevelbuilder/outreach/internal/store/memory"
)

func TestTableRank(t *testing.T) {
	tbl := NewTable(nil)
	if got := tbl.Rank("customer_service"); got != 10 {
		t.Errorf("Rank(customer_service) = %d, want 10", got)
	}
	if got := tbl.Rank("nurture"); got != 1 {
		t.Errorf("Rank(nurture) = %d, want 1", got)
	}
	if got := tbl.Rank("unknown_type"); got != 1 {
		t.Errorf("Rank(unknown_type) = %d, want default 1", got)
	}

	tbl = NewTable(map[string]int{"sales": 7, "vip": 9})
	if got := tbl.Rank("sales"); got != 7 {
		t.Errorf("override Rank(sales) = %d, want 7", got)
	}
	if got := tbl.Rank("vip"); got != 9 {
		t.Errorf("override Rank(vip) = %d, want 9", got)
	}
	if got := tbl.Rank("customer_service"); got != 10 {
		t.Errorf("Rank(customer_service) after override = %d, want 10", got)
	}
}

func TestArbitrate(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	setup := func() (*Arbiter, *memory.Store, uuid.UUID) {
		mem := memory.New()
		stores := mem.Stores()
		return New(NewTable(nil), stores.Conversations), mem, uuid.New()
	}

	t.Run("empty slot accepts any agent", func(t *testing.T) {
		a, mem, contact := setup()
		agent := uuid.New()
		d, err := a.Arbitrate(ctx, contact, agent, "nurture", store.KindCheckin, now)
		if err != nil {
			t.Fatalf("Arbitrate: %v", err)
		}
		if d != Accepted {
			t.Fatalf("decision = %s, want accepted", d)
		}
		st, _ := mem.Stores().Conversations.GetOrCreate(ctx, contact)
		if st.ActiveAgentID == nil || *st.ActiveAgentID != agent {
			t.Errorf("active agent = %v, want %s", st.ActiveAgentID, agent)
		}
		if st.ActivePriority != 1 {
			t.Errorf("active priority = %d, want 1", st.ActivePriority)
		}
	})

	t.Run("higher priority preempts", func(t *testing.T) {
		a, mem, contact := setup()
		nurture := uuid.New()
		cs := uuid.New()
		if _, err := a.Arbitrate(ctx, contact, nurture, "nurture", store.KindCheckin, now); err != nil {
			t.Fatalf("seed incumbent: %v", err)
		}
		d, err := a.Arbitrate(ctx, contact, cs, "customer_service", store.KindRetention, now)
		if err != nil {
			t.Fatalf("Arbitrate: %v", err)
		}
		if d != Accepted {
			t.Fatalf("decision = %s, want accepted", d)
		}
		st, _ := mem.Stores().Conversations.GetOrCreate(ctx, contact)
		if *st.ActiveAgentID != cs || st.ActivePriority != 10 {
			t.Errorf("slot = (%s, %d), want (%s, 10)", *st.ActiveAgentID, st.ActivePriority, cs)
		}
	})

	t.Run("lower priority defers and queues", func(t *testing.T) {
		a, mem, contact := setup()
		sales := uuid.New()
		nurture := uuid.New()
		if _, err := a.Arbitrate(ctx, contact, sales, "sales", store.KindUpsell, now); err != nil {
			t.Fatalf("seed incumbent: %v", err)
		}
		d, err := a.Arbitrate(ctx, contact, nurture, "nurture", store.KindCheckin, now)
		if err != nil {
			t.Fatalf("Arbitrate: %v", err)
		}
		if d != Deferred {
			t.Fatalf("decision = %s, want deferred", d)
		}
		st, _ := mem.Stores().Conversations.GetOrCreate(ctx, contact)
		if *st.ActiveAgentID != sales {
			t.Errorf("incumbent displaced by lower priority")
		}
		if len(st.Deferred) != 1 {
			t.Fatalf("deferred queue length = %d, want 1", len(st.Deferred))
		}
		if st.Deferred[0].AgentID != nurture || st.Deferred[0].MessageKind != store.KindCheckin {
			t.Errorf("deferred entry = %+v", st.Deferred[0])
		}
	})

	t.Run("equal priority tie favors incumbent", func(t *testing.T) {
		a, mem, contact := setup()
		first := uuid.New()
		second := uuid.New()
		if _, err := a.Arbitrate(ctx, contact, first, "content", store.KindOnboarding, now); err != nil {
			t.Fatalf("seed incumbent: %v", err)
		}
		d, err := a.Arbitrate(ctx, contact, second, "education", store.KindCheckin, now)
		if err != nil {
			t.Fatalf("Arbitrate: %v", err)
		}
		if d != Deferred {
			t.Fatalf("decision = %s, want deferred on tie", d)
		}
		st, _ := mem.Stores().Conversations.GetOrCreate(ctx, contact)
		if *st.ActiveAgentID != first {
			t.Errorf("tie displaced incumbent")
		}
	})

	t.Run("incumbent re-triggers and proceeds", func(t *testing.T) {
		a, _, contact := setup()
		agent := uuid.New()
		if _, err := a.Arbitrate(ctx, contact, agent, "sales", store.KindUpsell, now); err != nil {
			t.Fatalf("seed incumbent: %v", err)
		}
		d, err := a.Arbitrate(ctx, contact, agent, "sales", store.KindCheckin, now)
		if err != nil {
			t.Fatalf("Arbitrate: %v", err)
		}
		if d != Accepted {
			t.Fatalf("incumbent decision = %s, want accepted", d)
		}
	})
}
