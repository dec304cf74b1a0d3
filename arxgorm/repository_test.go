package arxgorm

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/getarx/arx/audit"
	"github.com/getarx/arx/domain"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open("sqlite", ":memory:", &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return repo
}

func TestUserUniquePerTenant(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u1 := domain.NewUser("u1", "t1", "a@x.com", "A", "hash", "member")
	if err := repo.CreateUser(ctx, u1); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	dup := domain.NewUser("u2", "t1", "a@x.com", "B", "hash", "member")
	if err := repo.CreateUser(ctx, dup); !errors.Is(err, domain.ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}

	crossTenant := domain.NewUser("u3", "t2", "a@x.com", "B", "hash", "member")
	if err := repo.CreateUser(ctx, crossTenant); err != nil {
		t.Errorf("expected cross-tenant create to succeed, got %v", err)
	}
}

func TestUserRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := domain.NewUser("u1", "t1", "a@x.com", "A", "hash", "member")
	u.Verification = &domain.VerificationCode{Value: "123456", ExpiresAt: time.Now().Add(time.Hour)}
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	got, err := repo.GetUser(ctx, "t1", "u1")
	if err != nil {
		t.Fatalf("failed to get user: %v", err)
	}
	if got.Email != "a@x.com" || got.Verification == nil || got.Verification.Value != "123456" {
		t.Errorf("unexpected user: %+v", got)
	}

	// Clearing the verification code must persist through update.
	got.EmailVerified = true
	got.Verification = nil
	if err := repo.UpdateUser(ctx, got); err != nil {
		t.Fatalf("failed to update user: %v", err)
	}
	again, _ := repo.GetUser(ctx, "t1", "u1")
	if !again.EmailVerified || again.Verification != nil {
		t.Errorf("update did not persist cleared code: %+v", again)
	}

	// Lookups are tenant scoped.
	if _, err := repo.GetUser(ctx, "t2", "u1"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected cross-tenant get to miss, got %v", err)
	}
	if _, err := repo.FindUserByEmail(ctx, "t2", "a@x.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected cross-tenant find to miss, got %v", err)
	}
}

func TestTenantUniqueness(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateTenant(ctx, domain.NewTenant("t1", "Acme", "acme")); err != nil {
		t.Fatalf("failed to create tenant: %v", err)
	}
	if err := repo.CreateTenant(ctx, domain.NewTenant("t2", "Acme", "")); !errors.Is(err, domain.ErrDuplicateTenant) {
		t.Errorf("expected duplicate name rejected, got %v", err)
	}
	if err := repo.CreateTenant(ctx, domain.NewTenant("t3", "Other", "acme")); !errors.Is(err, domain.ErrDuplicateTenant) {
		t.Errorf("expected duplicate domain rejected, got %v", err)
	}
	// Multiple tenants without a domain are fine.
	if err := repo.CreateTenant(ctx, domain.NewTenant("t4", "NoDomainA", "")); err != nil {
		t.Errorf("failed to create domainless tenant: %v", err)
	}
	if err := repo.CreateTenant(ctx, domain.NewTenant("t5", "NoDomainB", "")); err != nil {
		t.Errorf("failed to create second domainless tenant: %v", err)
	}

	got, err := repo.GetTenantByDomain(ctx, "acme")
	if err != nil || got.ID != "t1" {
		t.Errorf("GetTenantByDomain = %+v, %v", got, err)
	}
}

func TestRotateRefreshRecord(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	rec := &domain.RefreshTokenRecord{
		ID: "r1", TenantID: "t1", UserID: "u1",
		TokenHash: "old-hash", ExpiresAt: now.Add(time.Hour), CreatedAt: now,
	}
	if err := repo.CreateRefreshRecord(ctx, rec); err != nil {
		t.Fatalf("failed to create record: %v", err)
	}

	rotated, err := repo.RotateRefreshRecord(ctx, "t1", "r1", "old-hash", "new-hash", "ios", "1.2.3.4", now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("failed to rotate: %v", err)
	}
	if !rotated {
		t.Fatal("expected rotation to touch the row")
	}

	// The stale hash no longer matches anything.
	rotated, err = repo.RotateRefreshRecord(ctx, "t1", "r1", "old-hash", "newer-hash", "", "", now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("failed on second rotate: %v", err)
	}
	if rotated {
		t.Error("expected stale-hash rotation to touch zero rows")
	}

	records, err := repo.FindValidRefreshRecords(ctx, "t1", "u1", now)
	if err != nil {
		t.Fatalf("failed to find records: %v", err)
	}
	if len(records) != 1 || records[0].TokenHash != "new-hash" || records[0].DeviceInfo != "ios" {
		t.Errorf("unexpected records: %+v", records[0])
	}
}

func TestFindValidRefreshRecordsOrderAndExpiry(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	for i, rec := range []*domain.RefreshTokenRecord{
		{ID: "old", TenantID: "t1", UserID: "u1", TokenHash: "h1", ExpiresAt: now.Add(time.Hour), CreatedAt: now.Add(-2 * time.Minute)},
		{ID: "new", TenantID: "t1", UserID: "u1", TokenHash: "h2", ExpiresAt: now.Add(time.Hour), CreatedAt: now.Add(-1 * time.Minute)},
		{ID: "expired", TenantID: "t1", UserID: "u1", TokenHash: "h3", ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-3 * time.Minute)},
		{ID: "other", TenantID: "t1", UserID: "u2", TokenHash: "h4", ExpiresAt: now.Add(time.Hour), CreatedAt: now},
	} {
		if err := repo.CreateRefreshRecord(ctx, rec); err != nil {
			t.Fatalf("failed to create record %d: %v", i, err)
		}
	}

	records, err := repo.FindValidRefreshRecords(ctx, "t1", "u1", now)
	if err != nil {
		t.Fatalf("failed to find records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 valid records, got %d", len(records))
	}
	if records[0].ID != "new" || records[1].ID != "old" {
		t.Errorf("expected newest first, got %s then %s", records[0].ID, records[1].ID)
	}

	if err := repo.DeleteExpiredRefreshRecords(ctx, "t1", "u1", now); err != nil {
		t.Fatalf("failed to delete expired: %v", err)
	}
	var count int64
	repo.DB().Model(&gormRefreshRecord{}).Where("tenant_id = ? AND user_id = ?", "t1", "u1").Count(&count)
	if count != 2 {
		t.Errorf("expected expired record purged, %d rows remain", count)
	}
}

func TestPolicyStoreRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	role := &domain.Role{ID: "r1", TenantID: "t1", Name: "admin", Active: true, CreatedAt: time.Now()}
	if err := repo.CreateRole(ctx, role); err != nil {
		t.Fatalf("failed to create role: %v", err)
	}
	if err := repo.CreateRole(ctx, &domain.Role{ID: "r2", TenantID: "t1", Name: "admin"}); !errors.Is(err, domain.ErrDuplicateRole) {
		t.Errorf("expected ErrDuplicateRole, got %v", err)
	}
	if err := repo.CreateRole(ctx, &domain.Role{ID: "r3", TenantID: "t2", Name: "admin", Active: true}); err != nil {
		t.Errorf("expected cross-tenant role to succeed, got %v", err)
	}

	got, err := repo.GetRoleByName(ctx, "t1", "admin")
	if err != nil || got.ID != "r1" {
		t.Errorf("GetRoleByName = %+v, %v", got, err)
	}

	rule := &domain.PermitRule{ID: "p1", TenantID: "t1", Subject: "admin", Resource: "user", Action: "delete"}
	if err := repo.AddPermitRule(ctx, rule); err != nil {
		t.Fatalf("failed to add permit: %v", err)
	}
	// Re-granting is a no-op.
	if err := repo.AddPermitRule(ctx, &domain.PermitRule{ID: "p2", TenantID: "t1", Subject: "admin", Resource: "user", Action: "delete"}); err != nil {
		t.Errorf("expected duplicate grant to no-op, got %v", err)
	}
	rules, _ := repo.ListPermitRules(ctx)
	if len(rules) != 1 {
		t.Errorf("expected 1 permit rule, got %d", len(rules))
	}

	if err := repo.DeletePermitRule(ctx, "t1", "admin", "user", "delete"); err != nil {
		t.Fatalf("failed to delete permit: %v", err)
	}
	rules, _ = repo.ListPermitRules(ctx)
	if len(rules) != 0 {
		t.Errorf("expected permit removed, got %d", len(rules))
	}
}

func TestAuditEvents(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	events := []*audit.Event{
		{ID: "e1", Type: audit.EventLoginSuccess, TenantID: "t1", ActorID: "u1", Status: "success", CreatedAt: now.Add(-2 * time.Minute)},
		{ID: "e2", Type: audit.EventLoginFailure, TenantID: "t1", ActorID: "u1", Status: "failure", CreatedAt: now.Add(-time.Minute)},
		{ID: "e3", Type: audit.EventLoginSuccess, TenantID: "t2", ActorID: "u9", Status: "success", CreatedAt: now},
	}
	for _, e := range events {
		if err := repo.SaveEvent(ctx, e); err != nil {
			t.Fatalf("failed to save event: %v", err)
		}
	}

	got, err := repo.QueryEvents(ctx, audit.Filter{TenantID: "t1"})
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events for t1, got %d", len(got))
	}
	if got[0].ID != "e2" {
		t.Errorf("expected newest first, got %s", got[0].ID)
	}

	got, _ = repo.QueryEvents(ctx, audit.Filter{Types: []string{audit.EventLoginSuccess}})
	if len(got) != 2 {
		t.Errorf("expected 2 login successes, got %d", len(got))
	}
}
