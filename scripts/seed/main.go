package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/odyssey-erp/simdesk/internal/auth"
	"github.com/odyssey-erp/simdesk/internal/platform/db"
	"github.com/odyssey-erp/simdesk/internal/rbac"
	"github.com/odyssey-erp/simdesk/internal/shared"
	"github.com/odyssey-erp/simdesk/internal/sims"
)

// seeder acts as this principal when writing demo records.
var seeder = rbac.Principal{UserID: 1, Username: "seed", Role: rbac.RoleAdmin}

func main() {
	dsn := getenv("DATABASE_DSN", "file:data/simdesk.db")
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	conn, err := db.Open(ctx, dsn, logger)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	if err := db.Migrate(ctx, conn); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	fmt.Println("→ Seeding users...")
	if err := seedUsers(ctx, auth.NewService(auth.NewRepository(conn))); err != nil {
		log.Fatalf("seed users: %v", err)
	}

	svc := sims.NewService(sims.NewRepository(conn), sims.WithLogger(logger))
	fmt.Println("→ Seeding SIM cards...")
	ids, err := seedSims(ctx, svc)
	if err != nil {
		log.Fatalf("seed sims: %v", err)
	}

	fmt.Println("→ Seeding usage records...")
	if err := seedUsage(ctx, svc, ids); err != nil {
		log.Fatalf("seed usage: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func seedUsers(ctx context.Context, svc *auth.Service) error {
	users := []struct {
		username string
		password string
		role     rbac.Role
	}{
		{getenv("ADMIN_USERNAME", "admin"), getenv("ADMIN_PASSWORD", "changeme"), rbac.RoleAdmin},
		{"operator", "operator123", rbac.RoleOperator},
		{"viewer", "viewer123", rbac.RoleViewer},
	}
	for _, u := range users {
		if _, err := svc.CreateUser(ctx, u.username, u.password, u.role); err != nil {
			if errors.Is(err, shared.ErrDuplicateKey) {
				continue
			}
			return err
		}
	}
	return nil
}

func seedSims(ctx context.Context, svc *sims.Service) ([]int64, error) {
	inputs := []sims.SimInput{
		{IMEI: "356938035643809", IMSI: "310150123456789", PhoneNumber: "+15550100001", Carrier: "Acme Mobile", IssueDate: "2023-02-01", ExpiryDate: "2026-02-01", OwnerName: "Alice Carter", OwnerID: "EMP-001"},
		{IMEI: "356938035643810", IMSI: "310150123456790", PhoneNumber: "+15550100002", Carrier: "Acme Mobile", IssueDate: "2023-05-12", OwnerName: "Bruno Diaz", OwnerID: "EMP-002"},
		{IMEI: "490154203237518", IMSI: "310260987654321", PhoneNumber: "+15550100003", Carrier: "Globex Telecom", IssueDate: "2023-08-20", Status: "suspended", OwnerName: "Chen Wei", OwnerID: "EMP-003"},
		{IMEI: "353918050712345", IMSI: "310260987654322", Carrier: "Globex Telecom", IssueDate: "2024-01-03", Status: "inactive"},
		{IMEI: "359881030314356", IMSI: "310410555000111", PhoneNumber: "+15550100005", Carrier: "Initech Wireless", IssueDate: "2024-03-15", Status: "lost", OwnerName: "Dana Evans", OwnerID: "EMP-004"},
		{IMEI: "352099001761481", IMSI: "310410555000112", PhoneNumber: "+15550100006", Carrier: "Initech Wireless", IssueDate: "2024-06-30", ExpiryDate: "2027-06-30", OwnerName: "Eli Fischer", OwnerID: "EMP-005"},
	}

	existing, err := svc.List(ctx, seeder, "")
	if err != nil {
		return nil, err
	}
	byIMEI := make(map[string]int64, len(existing))
	for _, sim := range existing {
		byIMEI[sim.IMEI] = sim.ID
	}

	ids := make([]int64, 0, len(inputs))
	for _, in := range inputs {
		if id, ok := byIMEI[in.IMEI]; ok {
			ids = append(ids, id)
			continue
		}
		sim, err := svc.Create(ctx, seeder, in)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", in.IMEI, err)
		}
		ids = append(ids, sim.ID)
	}
	return ids, nil
}

func seedUsage(ctx context.Context, svc *sims.Service, ids []int64) error {
	start := time.Now().UTC().AddDate(0, 0, -14)
	for i, id := range ids {
		history, err := svc.UsageHistory(ctx, seeder, id)
		if err != nil {
			return err
		}
		if len(history) > 0 {
			continue
		}
		for day := 0; day < 14; day += 2 {
			in := sims.UsageInput{
				DataUsedMB:  float64((i+1)*120+day*15) + 0.5,
				CallMinutes: float64((i+2)*7 + day),
				SMSCount:    int64(i*3 + day),
				Date:        start.AddDate(0, 0, day).Format(sims.DateLayout),
			}
			if _, err := svc.RecordUsage(ctx, seeder, id, in); err != nil {
				return err
			}
		}
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
