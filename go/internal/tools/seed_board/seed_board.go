package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/roomboard/go/internal/dbconfig"
	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/mcdev12/roomboard/go/internal/rooms"
	"github.com/mcdev12/roomboard/go/internal/sections"
	"github.com/mcdev12/roomboard/go/internal/statuses"
	"github.com/mcdev12/roomboard/go/internal/store"
	"github.com/mcdev12/roomboard/go/internal/store/pgstore"
	"github.com/mcdev12/roomboard/go/internal/users"
	"golang.org/x/crypto/bcrypt"
)

var demoStatuses = []statuses.CreateStatusRequest{
	{Name: "대기", TimerType: models.TimerTypeCountup, Color: "#9e9e9e"},
	{Name: "시술중", TimerType: models.TimerTypeCountdown, TargetTime: 1800, Color: "#e53935"},
	{Name: "마취중", TimerType: models.TimerTypeCountdown, TargetTime: 1200, Color: "#fb8c00"},
	{Name: "완료", TimerType: models.TimerTypeCountup, Color: "#43a047"},
}

func main() {
	email := flag.String("email", "demo@roomboard.kr", "demo account email")
	password := flag.String("password", "demo1234", "demo account password")
	hospital := flag.String("hospital", "데모의원", "hospital name")
	department := flag.String("department", "피부과", "department name")
	sectionCount := flag.Int("sections", 2, "sections to create")
	roomCount := flag.Int("rooms", 4, "rooms per section")
	flag.Parse()

	ctx := context.Background()

	// 1) Build the board in memory through the application layer
	backend := store.NewMemoryBackend()
	if err := build(ctx, store.NewDocumentStore(backend), *email, *password, *hospital, *department, *sectionCount, *roomCount); err != nil {
		fmt.Fprintf(os.Stderr, "build demo board: %v\n", err)
		os.Exit(1)
	}
	docs := backend.Documents()

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, pgstore.SchemaSQL); err != nil {
		fmt.Fprintf(os.Stderr, "create documents table: %v\n", err)
		os.Exit(1)
	}

	// 3) Insert and count; existing documents are left alone
	var (
		total    = len(docs)
		inserted int
		skipped  int
		errs     int
	)

	roots := make([]string, 0, len(docs))
	for root := range docs {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	channel := pgstore.DefaultConfig().NotifyChannel
	for _, root := range roots {
		cmdTag, err := pool.Exec(ctx, `
            INSERT INTO roomboard_documents (root, body, updated_at)
            VALUES ($1, $2::jsonb, now())
            ON CONFLICT (root) DO NOTHING
        `, root, string(docs[root]))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting document %s: %v\n", root, err)
			errs++
			continue
		}
		if cmdTag.RowsAffected() != 1 {
			skipped++
			continue
		}
		inserted++
		if _, err := pool.Exec(ctx, `SELECT pg_notify($1, $2)`, channel, root); err != nil {
			fmt.Fprintf(os.Stderr, "notify %s: %v\n", root, err)
		}
	}

	// 4) Print summary
	fmt.Printf(
		"Board seed complete: %d total, %d inserted, %d skipped, %d errors (login %s / %s)\n",
		total, inserted, skipped, errs, *email, *password,
	)
}

// build signs up the demo account and fills its department
func build(ctx context.Context, s store.Store, email, password, hospital, department string, sectionCount, roomCount int) error {
	clock := clockwork.NewRealClock()

	userApp := users.NewApp(users.NewRepository(s), clock, bcrypt.DefaultCost)
	user, err := userApp.SignUp(ctx, users.SignUpRequest{
		Email:           email,
		Password:        password,
		PasswordConfirm: password,
		HospitalName:    hospital,
		DepartmentName:  department,
	})
	if err != nil {
		return fmt.Errorf("sign up: %w", err)
	}
	scope := models.Scope{HospitalID: user.HospitalID, DepartmentID: user.DepartmentID}

	statusApp := statuses.NewApp(statuses.NewRepository(s), demoStatuses)
	sectionApp := sections.NewApp(sections.NewRepository(s), statusApp, clock)
	roomApp := rooms.NewApp(rooms.NewRepository(s), statusApp, clock)

	for i := 0; i < sectionCount; i++ {
		section, err := sectionApp.CreateSection(ctx, scope, "")
		if err != nil {
			return fmt.Errorf("create section: %w", err)
		}
		list, err := statusApp.ListStatuses(ctx, scope, section.ID)
		if err != nil {
			return fmt.Errorf("list statuses: %w", err)
		}
		for j := 0; j < roomCount; j++ {
			room, err := roomApp.CreateRoom(ctx, scope, section.ID)
			if err != nil {
				return fmt.Errorf("create room: %w", err)
			}
			// leave every other room empty
			if j%2 == 1 || len(list) == 0 {
				continue
			}
			st := list[(j/2)%len(list)]
			req := rooms.SaveStatusRequest{
				PatientName: fmt.Sprintf("환자 %d-%d", i+1, j+1),
				StatusID:    st.ID,
				Seconds:     st.TargetTime,
			}
			if _, err := roomApp.SaveStatus(ctx, scope, section.ID, room.ID, req); err != nil {
				return fmt.Errorf("save status: %w", err)
			}
		}
	}
	return nil
}
