package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clinic-records/handlers"
	"clinic-records/middleware"
	"clinic-records/models"
	"clinic-records/schema"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const token = "client-test-token"

func init() {
	gin.SetMode(gin.TestMode)
}

// newServer runs the real router on an in-memory database and counts the
// requests that reach it.
func newServer(t *testing.T) (*Client, *atomic.Int64) {
	t.Helper()
	db, err := models.Open("sqlite::memory:")
	require.NoError(t, err)
	repo := models.NewRepository(db)
	t.Cleanup(func() { _ = repo.Close() })

	router := handlers.NewRouter(handlers.Services{
		Repo:     repo,
		Sessions: middleware.StaticToken(token),
		Logger:   zap.NewNop(),
	})

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	return New(srv.URL, WithToken(token), WithTimeout(5*time.Second)), &hits
}

func patient(name string) schema.Record {
	return schema.Record{
		Name:       name,
		Address:    "12 Main St",
		Telephone:  "555-0100",
		Occupation: "Engineer",
		Status:     "single",
		Gender:     "female",
		Complaint:  "Toothache",
		Birthday:   datatypes.Date(time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC)),
	}
}

func entry(fees string) schema.Transaction {
	return schema.Transaction{
		Date:    datatypes.Date(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)),
		Tooth:   "11",
		Service: "Cleaning",
		Fees:    decimal.RequireFromString(fees),
	}
}

func summaryNames(out handlers.ListRecordsOutput) []string {
	names := make([]string, 0, len(out.Records))
	for _, r := range out.Records {
		names = append(names, r.Name)
	}
	return names
}

func TestJaneDoeScenario(t *testing.T) {
	c, _ := newServer(t)
	ctx := context.Background()

	_, err := c.AddRecord(ctx, patient("Jane Doe"))
	require.NoError(t, err)

	all, err := c.ListRecords(ctx, schema.ListRecordsInput{PageNumber: 1, SortType: schema.SortAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"Jane Doe"}, summaryNames(all))
	assert.Equal(t, 1, all.PageCount)

	found, err := c.ListRecords(ctx, schema.ListRecordsInput{PageNumber: 1, SearchTerm: "jane", SortType: schema.SortAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"Jane Doe"}, summaryNames(found))

	none, err := c.ListRecords(ctx, schema.ListRecordsInput{PageNumber: 1, SearchTerm: "zzz", SortType: schema.SortAsc})
	require.NoError(t, err)
	assert.Empty(t, none.Records)
	assert.Equal(t, 0, none.PageCount)
}

func TestQueriesAreServedFromCacheUntilInvalidated(t *testing.T) {
	c, hits := newServer(t)
	ctx := context.Background()
	in := schema.ListRecordsInput{PageNumber: 1, SortType: schema.SortAsc}

	_, err := c.AddRecord(ctx, patient("Jane Doe"))
	require.NoError(t, err)

	_, err = c.ListRecords(ctx, in)
	require.NoError(t, err)
	before := hits.Load()

	cached, err := c.ListRecords(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, before, hits.Load())
	assert.Equal(t, []string{"Jane Doe"}, summaryNames(cached))

	_, err = c.AddRecord(ctx, patient("Adam Smith"))
	require.NoError(t, err)

	fresh, err := c.ListRecords(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, before+2, hits.Load())
	assert.Equal(t, []string{"Adam Smith", "Jane Doe"}, summaryNames(fresh))
}

func TestAddTransactionRefreshesRecord(t *testing.T) {
	c, _ := newServer(t)
	ctx := context.Background()

	rec, err := c.AddRecord(ctx, patient("Jane Doe"))
	require.NoError(t, err)

	detail, err := c.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Empty(t, detail.Entries)

	added, err := c.AddTransaction(ctx, schema.TransactionAdd{RecordID: rec.ID, Transaction: entry("0.01")})
	require.NoError(t, err)
	assert.Equal(t, rec.ID, added.RecordID)

	detail, err = c.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, detail.Entries, 1)
	assert.Equal(t, added.ID, detail.Entries[0].ID)

	edited, err := c.EditTransaction(ctx, schema.TransactionEdit{ID: added.ID, Transaction: entry("25.50")})
	require.NoError(t, err)
	assert.Equal(t, rec.ID, edited.RecordID)

	detail, err = c.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, detail.Entries, 1)
	assert.True(t, decimal.RequireFromString("25.50").Equal(detail.Entries[0].Fees))

	_, err = c.DeleteTransaction(ctx, added.ID)
	require.NoError(t, err)
	detail, err = c.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Entries)
}

func TestZeroFeesNeverReachTheServer(t *testing.T) {
	c, hits := newServer(t)

	_, err := c.AddTransaction(context.Background(), schema.TransactionAdd{RecordID: "any", Transaction: entry("0")})
	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "fees", verr.Issues[0].Field)
	assert.Zero(t, hits.Load())
}

func TestMissingRecords(t *testing.T) {
	c, _ := newServer(t)
	ctx := context.Background()

	detail, err := c.GetRecord(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, detail)

	_, err = c.DeleteRecord(ctx, "missing")
	assert.True(t, HasCode(err, CodeNotFound), "got %v", err)

	rec, err := c.AddRecord(ctx, patient("Jane Doe"))
	require.NoError(t, err)
	_, err = c.DeleteRecord(ctx, rec.ID)
	require.NoError(t, err)
	_, err = c.DeleteRecord(ctx, rec.ID)
	assert.True(t, HasCode(err, CodeNotFound), "got %v", err)
}

func TestEditRecordInvalidatesDetail(t *testing.T) {
	c, _ := newServer(t)
	ctx := context.Background()

	rec, err := c.AddRecord(ctx, patient("Jane Doe"))
	require.NoError(t, err)
	_, err = c.GetRecord(ctx, rec.ID)
	require.NoError(t, err)

	_, err = c.EditRecord(ctx, schema.RecordEdit{ID: rec.ID, Record: patient("Jane Roe")})
	require.NoError(t, err)

	detail, err := c.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Roe", detail.Name)
}

func TestUnauthorized(t *testing.T) {
	db, err := models.Open("sqlite::memory:")
	require.NoError(t, err)
	repo := models.NewRepository(db)
	t.Cleanup(func() { _ = repo.Close() })
	srv := httptest.NewServer(handlers.NewRouter(handlers.Services{
		Repo:     repo,
		Sessions: middleware.StaticToken(token),
		Logger:   zap.NewNop(),
	}))
	t.Cleanup(srv.Close)

	_, err = New(srv.URL).ListRecords(context.Background(), schema.ListRecordsInput{PageNumber: 1, SortType: schema.SortAsc})
	assert.True(t, HasCode(err, CodeUnauthorized), "got %v", err)
}

func TestConcurrentMutationIsRejected(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"data":{"id":"r1","name":"Jane Doe","age":34}}}`))
	}))
	t.Cleanup(srv.Close)
	c := New(srv.URL)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = c.AddRecord(context.Background(), patient("Jane Doe"))
	}()

	<-entered
	assert.True(t, c.Pending("record.add"))
	_, err := c.AddRecord(context.Background(), patient("Jane Doe"))
	assert.ErrorIs(t, err, ErrMutationInFlight)

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.False(t, c.Pending("record.add"))
}
