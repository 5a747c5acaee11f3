package perf

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/odyssey-erp/simdesk/internal/platform/db"
	"github.com/odyssey-erp/simdesk/internal/rbac"
	"github.com/odyssey-erp/simdesk/internal/sims"
)

var (
	operator = rbac.Principal{UserID: 1, Username: "perf", Role: rbac.RoleOperator}
	viewer   = rbac.Principal{UserID: 2, Username: "perf-view", Role: rbac.RoleViewer}
)

func seededService(tb testing.TB, rows int) *sims.Service {
	tb.Helper()
	ctx := context.Background()
	conn, err := db.Open(ctx, fmt.Sprintf("file:perf_%d?mode=memory&cache=shared", time.Now().UnixNano()), nil)
	if err != nil {
		tb.Fatalf("open store: %v", err)
	}
	if err := db.Migrate(ctx, conn); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	tb.Cleanup(func() { closeStore(conn) })

	svc := sims.NewService(sims.NewRepository(conn), sims.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	carriers := []string{"Acme Mobile", "Globex Telecom", "Initech Wireless", "Umbrella Net"}
	for i := 0; i < rows; i++ {
		_, err := svc.Create(ctx, operator, sims.SimInput{
			IMEI:        fmt.Sprintf("35%013d", i),
			IMSI:        fmt.Sprintf("31%013d", i),
			PhoneNumber: fmt.Sprintf("+1555%07d", i),
			Carrier:     carriers[i%len(carriers)],
			IssueDate:   "2024-01-01",
			OwnerName:   fmt.Sprintf("Owner %d", i),
		})
		if err != nil {
			tb.Fatalf("seed row %d: %v", i, err)
		}
	}
	return svc
}

func closeStore(conn *gorm.DB) {
	if sqlDB, err := conn.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func TestSearchLatencyTargets(t *testing.T) {
	if testing.Short() {
		t.Skip("latency targets skipped in short mode")
	}
	svc := seededService(t, 1000)
	ctx := context.Background()

	scenarios := []struct {
		name      string
		term      string
		threshold time.Duration
	}{
		{name: "unfiltered", term: "", threshold: 500 * time.Millisecond},
		{name: "carrier", term: "globex", threshold: 500 * time.Millisecond},
		{name: "miss", term: "no-such-sim", threshold: 250 * time.Millisecond},
	}

	for _, scenario := range scenarios {
		samples := make([]time.Duration, 0, 20)
		for i := 0; i < 20; i++ {
			start := time.Now()
			if _, err := svc.List(ctx, viewer, scenario.term); err != nil {
				t.Fatalf("%s: list: %v", scenario.name, err)
			}
			samples = append(samples, time.Since(start))
		}
		p95 := percentile95(samples)
		if p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}

func BenchmarkDashboardStats(b *testing.B) {
	svc := seededService(b, 500)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.DashboardStats(ctx, viewer); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSearch(b *testing.B) {
	svc := seededService(b, 500)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.List(ctx, viewer, "owner 4"); err != nil {
			b.Fatal(err)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
