package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lithammer/shortuuid/v3"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"gallery/app"
	"gallery/db"
	"gallery/entity"
	"gallery/gateway"
	galleryHTTP "gallery/http"
	"gallery/pubsub"
	"gallery/pubsub/event"
	"gallery/tracing"
)

const (
	httpAddress = ":8080"
	baseURL     = "http://localhost:8080"
	jwtSecret   = "component-test-secret"
)

var (
	curator = entity.Actor{UserID: "curator", Role: entity.RoleAdmin}
	visitor = entity.Actor{UserID: "visitor-" + shortuuid.New(), Role: entity.RoleUser}
)

func TestComponent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("github.com/testcontainers/testcontainers-go.(*Reaper).Connect.func1"))
	defer http.DefaultClient.CloseIdleConnections()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbconn, err := db.Open(postgresURL)
	require.NoError(t, err)
	defer dbconn.Close()

	redisClient := pubsub.NewRedisClient(redisURL)
	defer redisClient.Close()

	spreadsheetsClient := &gateway.SpreadsheetsMock{}

	traceProvider, err := tracing.ConfigureTraceProvider("")
	require.NoError(t, err)

	application, err := app.New(
		app.Settings{
			HTTPAddr:        httpAddress,
			JWTSecret:       jwtSecret,
			LockTimeout:     2 * time.Second,
			ConflictRetries: 3,
		},
		dbconn,
		redisClient,
		spreadsheetsClient,
		func() time.Time { return time.Now().UTC() },
		traceProvider,
	)
	require.NoError(t, err)

	finished := make(chan struct{})
	go func() {
		assert.NoError(t, application.Run(ctx))
		close(finished)
	}()

	defer func() {
		cancel()
		<-finished
	}()

	waitForHttpServer(t)

	exhibition := createExhibition(t, 10)

	ticket := bookTickets(t, exhibition.ExhibitionID, 4)
	assert.Equal(t, "60.00", ticket.TotalPrice)

	inventory := getInventory(t, exhibition.ExhibitionID)
	assert.Equal(t, 10, inventory.Total)
	assert.Equal(t, 6, inventory.Remaining)
	assert.Equal(t, entity.StatusActive, inventory.Status)

	resp := sendRequest(t, visitor, http.MethodDelete, "/tickets/"+ticket.TicketID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	inventory = getInventory(t, exhibition.ExhibitionID)
	assert.Equal(t, 10, inventory.Remaining)

	assertRowToSheetAdded(t, spreadsheetsClient, ticket.TicketID, event.SheetTicketsSold)
	assertRowToSheetAdded(t, spreadsheetsClient, ticket.TicketID, event.SheetTicketsCancelled)
	assertEventsStoredInDataLake(t, dbconn, exhibition.ExhibitionID, ticket.TicketID)
}

type exhibitionResponse struct {
	ExhibitionID string `json:"exhibition_id"`
}

type ticketResponse struct {
	TicketID   string `json:"ticket_id"`
	TotalPrice string `json:"total_price"`
}

func createExhibition(t *testing.T, totalTickets int) exhibitionResponse {
	t.Helper()

	today := time.Now().UTC()
	resp := sendRequest(t, curator, http.MethodPost, "/exhibitions", map[string]any{
		"title":         "Component test " + shortuuid.New(),
		"location":      "Hall A",
		"start_date":    today.Format("2006-01-02"),
		"end_date":      today.AddDate(0, 0, 30).Format("2006-01-02"),
		"opening_time":  "00:00",
		"closing_time":  "23:59",
		"ticket_price":  "15.00",
		"total_tickets": totalTickets,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(resp.Body))

	return decodeBody[exhibitionResponse](t, resp)
}

func bookTickets(t *testing.T, exhibitionID string, quantity int) ticketResponse {
	t.Helper()

	resp := sendRequest(t, visitor, http.MethodPost, "/tickets", map[string]any{
		"exhibition_id": exhibitionID,
		"quantity":      quantity,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(resp.Body))

	return decodeBody[ticketResponse](t, resp)
}

func getInventory(t *testing.T, exhibitionID string) entity.Inventory {
	t.Helper()

	resp := sendRequest(t, visitor, http.MethodGet, "/exhibitions/"+exhibitionID+"/inventory", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Body))

	return decodeBody[entity.Inventory](t, resp)
}

func assertRowToSheetAdded(t *testing.T, spreadsheetsService *gateway.SpreadsheetsMock, ticketID string, sheetName string) bool {
	return assert.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			rows := spreadsheetsService.SheetRows(sheetName)
			if !assert.NotEmpty(t, rows, "sheet %s is empty", sheetName) {
				return
			}

			assert.Contains(t, lo.Flatten(rows), ticketID, "ticket id not found in sheet %s", sheetName)
		},
		10*time.Second,
		100*time.Millisecond,
	)
}

func assertEventsStoredInDataLake(t *testing.T, dbconn *sqlx.DB, exhibitionID, ticketID string) bool {
	dataLake := db.NewDataLake(dbconn)

	return assert.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			events, err := dataLake.GetEvents(context.Background())
			if !assert.NoError(t, err) {
				return
			}

			related := lo.Filter(events, func(e entity.DataLakeEvent, _ int) bool {
				return bytes.Contains(e.Payload, []byte(exhibitionID)) || bytes.Contains(e.Payload, []byte(ticketID))
			})
			names := lo.Map(related, func(e entity.DataLakeEvent, _ int) string {
				return e.Name
			})

			assert.ElementsMatch(t, []string{
				"ExhibitionCreated_v1",
				"TicketsBooked_v1",
				"TicketCancelled_v1",
			}, names)
		},
		10*time.Second,
		100*time.Millisecond,
	)
}

type response struct {
	StatusCode int
	Body       []byte
}

func sendRequest(t *testing.T, actor entity.Actor, method, path string, body any) response {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	token, err := galleryHTTP.IssueToken([]byte(jwtSecret), actor, time.Minute)
	require.NoError(t, err)

	req, err := http.NewRequest(method, baseURL+path, bytes.NewReader(payload))
	require.NoError(t, err)

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Correlation-ID", shortuuid.New())
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return response{StatusCode: resp.StatusCode, Body: respBody}
}

func decodeBody[T any](t *testing.T, resp response) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(resp.Body, &v), string(resp.Body))
	return v
}

func waitForHttpServer(t *testing.T) {
	t.Helper()

	require.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			resp, err := http.Get(baseURL + "/health")
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()

			assert.Less(t, resp.StatusCode, 300, "API not ready, http status: %d", resp.StatusCode)
		},
		time.Second*10,
		time.Millisecond*50,
	)
}
