package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCreateMarketValidation(t *testing.T) {
	clk := newFakeClock()
	r := newTestRegistry(clk)
	end := clk.Now().Add(time.Hour)

	if _, err := r.CreateMarket("alice", "  ", []string{"Yes", "No"}, end, ""); !errors.Is(err, ErrInvalidQuestion) {
		t.Fatalf("empty question: %v", err)
	}
	if _, err := r.CreateMarket("alice", "q", []string{"Only"}, end, ""); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("one option: %v", err)
	}
	if _, err := r.CreateMarket("alice", "q", []string{"A", "B", "C", "D", "E"}, end, ""); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("five options: %v", err)
	}
	if _, err := r.CreateMarket("alice", "q", []string{"A", ""}, end, ""); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("blank option label: %v", err)
	}
	if _, err := r.CreateMarket("alice", "q", []string{"Yes", "No"}, clk.Now().Add(-time.Minute), ""); !errors.Is(err, ErrInvalidEndTime) {
		t.Fatalf("past end time: %v", err)
	}
	if _, err := r.CreateMarket("alice", "q", []string{"Yes", "No"}, clk.Now(), ""); !errors.Is(err, ErrInvalidEndTime) {
		t.Fatalf("end time == now: %v", err)
	}
}

func TestCreateMarketDefaultAsset(t *testing.T) {
	clk := newFakeClock()
	r := newTestRegistry(clk)
	end := clk.Now().Add(time.Hour)

	m, err := r.CreateMarketSimple("alice", "q", []string{"Yes", "No"}, end)
	if err != nil {
		t.Fatalf("create simple: %v", err)
	}
	if m.CollateralAsset() != "USDC" {
		t.Fatalf("asset = %s, want default USDC", m.CollateralAsset())
	}

	m, err = r.CreateMarket("alice", "q", []string{"Yes", "No"}, end, "DAI")
	if err != nil {
		t.Fatalf("create with asset: %v", err)
	}
	if m.CollateralAsset() != "DAI" {
		t.Fatalf("asset = %s, want DAI", m.CollateralAsset())
	}

	bare := NewRegistry(RegistryOptions{Owner: "owner", Now: clk.Now})
	if _, err := bare.CreateMarketSimple("alice", "q", []string{"Yes", "No"}, end); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("no default asset: %v", err)
	}
}

func TestPagination(t *testing.T) {
	clk := newFakeClock()
	r := newTestRegistry(clk)
	end := clk.Now().Add(time.Hour)
	for i := 0; i < 5; i++ {
		if _, err := r.CreateMarketSimple("alice", "q", []string{"Yes", "No"}, end); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	window, total := r.Paginated(1, 2)
	if total != 5 || len(window) != 2 {
		t.Fatalf("window len %d total %d, want 2/5", len(window), total)
	}
	all := r.All()
	if window[0].ID() != all[1].ID() || window[1].ID() != all[2].ID() {
		t.Fatalf("window not in creation order")
	}

	window, total = r.Paginated(4, 10)
	if total != 5 || len(window) != 1 {
		t.Fatalf("tail window len %d total %d, want 1/5", len(window), total)
	}
	window, total = r.Paginated(5, 10)
	if total != 5 || len(window) != 0 {
		t.Fatalf("offset at total: len %d total %d, want 0/5", len(window), total)
	}
	window, total = r.Paginated(100, 10)
	if total != 5 || len(window) != 0 {
		t.Fatalf("offset beyond total: len %d total %d, want 0/5", len(window), total)
	}
}

func TestActiveIndexFollowsLifecycle(t *testing.T) {
	clk := newFakeClock()
	r := newTestRegistry(clk)
	end := clk.Now().Add(time.Hour)

	m1, _ := r.CreateMarketSimple("alice", "q1", []string{"Yes", "No"}, end)
	m2, _ := r.CreateMarketSimple("alice", "q2", []string{"Yes", "No"}, end)
	m3, _ := r.CreateMarketSimple("bob", "q3", []string{"Yes", "No"}, end)

	if got := len(r.Active()); got != 3 {
		t.Fatalf("active = %d, want 3", got)
	}

	if err := m2.Cancel("alice"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	clk.Advance(2 * time.Hour)
	if err := m1.Resolve("alice", []int{0}); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	active := r.Active()
	if len(active) != 1 || active[0].ID() != m3.ID() {
		t.Fatalf("active after settle = %d markets", len(active))
	}

	// Past end time but unresolved: still Active, just not open.
	if !contains(r.ExpiredActive(), m3.ID()) {
		t.Fatalf("m3 should be awaiting resolution")
	}
	if m3.IsOpenForBetting() {
		t.Fatalf("m3 should not be open for betting")
	}
}

func contains(markets []*Market, id string) bool {
	for _, m := range markets {
		if m.ID() == id {
			return true
		}
	}
	return false
}

func TestByCreatorAndValidity(t *testing.T) {
	clk := newFakeClock()
	r := newTestRegistry(clk)
	end := clk.Now().Add(time.Hour)

	a1, _ := r.CreateMarketSimple("alice", "q1", []string{"Yes", "No"}, end)
	r.CreateMarketSimple("bob", "q2", []string{"Yes", "No"}, end)
	a2, _ := r.CreateMarketSimple("alice", "q3", []string{"Yes", "No"}, end)

	byAlice := r.ByCreator("alice")
	if len(byAlice) != 2 || byAlice[0].ID() != a1.ID() || byAlice[1].ID() != a2.ID() {
		t.Fatalf("byCreator(alice) wrong: %d markets", len(byAlice))
	}
	if len(r.ByCreator("nobody")) != 0 {
		t.Fatalf("unknown creator should have no markets")
	}
	if !r.IsValidMarket(a1.ID()) {
		t.Fatalf("a1 should be valid")
	}
	if r.IsValidMarket("missing") {
		t.Fatalf("missing id should be invalid")
	}
	if _, err := r.Get("missing"); !errors.Is(err, ErrMarketNotFound) {
		t.Fatalf("get missing: %v", err)
	}
}

func TestRegistryAdmin(t *testing.T) {
	clk := newFakeClock()
	r := newTestRegistry(clk)

	if err := r.SetDefaultCollateralAsset("mallory", "DAI"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("non-owner set asset: %v", err)
	}
	if err := r.SetDefaultCollateralAsset("owner", "  "); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("blank asset: %v", err)
	}
	if err := r.SetDefaultCollateralAsset("owner", "DAI"); err != nil {
		t.Fatalf("set asset: %v", err)
	}
	if r.DefaultCollateralAsset() != "DAI" {
		t.Fatalf("default asset = %s", r.DefaultCollateralAsset())
	}

	if err := r.TransferOwnership("mallory", "mallory"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("non-owner transfer: %v", err)
	}
	if err := r.TransferOwnership("owner", ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("blank new owner: %v", err)
	}
	if err := r.TransferOwnership("owner", "owner2"); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := r.SetDefaultCollateralAsset("owner", "USDT"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("old owner should be locked out: %v", err)
	}
	if err := r.SetDefaultCollateralAsset("owner2", "USDT"); err != nil {
		t.Fatalf("new owner set asset: %v", err)
	}
}

func TestRestoreRebuildsLedger(t *testing.T) {
	clk := newFakeClock()
	r := newTestRegistry(clk)

	st := State{
		ID:              "m-1",
		Creator:         "alice",
		Question:        "restored?",
		Options:         []string{"Yes", "No"},
		CollateralAsset: "USDC",
		EndTime:         clk.Now().Add(-time.Hour),
		CreatedAt:       clk.Now().Add(-2 * time.Hour),
		Status:          StatusResolved,
		StakeByUser: map[string][]decimal.Decimal{
			"a": {decimal.NewFromInt(100), decimal.Zero},
			"b": {decimal.Zero, decimal.NewFromInt(100)},
		},
		Claimed:        map[string]bool{"a": true},
		WinningOptions: []bool{true, false},
	}
	if err := r.Restore(st); err != nil {
		t.Fatalf("restore: %v", err)
	}

	m, err := r.Get("m-1")
	if err != nil {
		t.Fatalf("get restored: %v", err)
	}
	info := m.Info()
	if !info.TotalPool.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("restored pool = %s, want 200", info.TotalPool)
	}
	if info.Status != StatusResolved || !info.WinningOptions[0] {
		t.Fatalf("restored status/outcome wrong: %+v", info)
	}
	if len(r.Active()) != 0 {
		t.Fatalf("resolved restore should not be active")
	}
	if _, err := m.ClaimWinnings("a"); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("restored claim flag lost: %v", err)
	}
	payout, err := m.ClaimWinnings("a2")
	if err == nil {
		t.Fatalf("stranger claim should fail, got %s", payout)
	}

	if err := r.Restore(st); err == nil {
		t.Fatalf("duplicate restore should fail")
	}
}
