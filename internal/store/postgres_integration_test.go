//go:build integration

package store_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/roach88/ormql/internal/access"
	"github.com/roach88/ormql/internal/batch"
	"github.com/roach88/ormql/internal/dialect"
	"github.com/roach88/ormql/internal/exp"
	"github.com/roach88/ormql/internal/query"
	"github.com/roach88/ormql/internal/schema"
	"github.com/roach88/ormql/internal/store"
	"github.com/roach88/ormql/internal/translate"
)

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

// postgresDSN starts one PostgreSQL container for the test binary. Ryuk
// removes it when the process exits.
func postgresDSN(t *testing.T) string {
	t.Helper()
	containerOnce.Do(func() {
		ctx := context.Background()
		container, err := postgres.Run(ctx,
			"postgres:17-alpine",
			postgres.WithDatabase("gallery"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			containerErr = err
			return
		}
		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			_ = container.Terminate(ctx)
			containerErr = err
			return
		}
		containerDSN = dsn
	})
	if containerErr != nil {
		t.Skipf("postgres container unavailable: %v", containerErr)
	}
	return containerDSN
}

func TestPostgres_RoundTrip(t *testing.T) {
	for _, driver := range []string{store.DriverPgx, store.DriverPostgres} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			st, err := store.Open(driver, postgresDSN(t))
			require.NoError(t, err)
			t.Cleanup(func() { st.Close() })
			assert.Equal(t, dialect.Postgres, st.DialectName())

			sc, err := schema.LoadFile("../schema/testdata/gallery.yaml")
			require.NoError(t, err)
			d := dialect.MustLookup(dialect.Postgres)

			for _, e := range sc.Entities {
				_, err := st.Exec(ctx, `DROP TABLE IF EXISTS "`+e.Table+`"`)
				require.NoError(t, err)
			}
			require.NoError(t, st.ApplySchema(ctx, sc, d))

			tr := translate.New(sc)
			seed(t, st, tr, d, sc, "Artist", []map[string]any{
				{"id": 1, "name": "Picasso"},
				{"id": 2, "name": "Dali"},
			})
			seed(t, st, tr, d, sc, "Painting", []map[string]any{
				{"id": 1, "title": "Guernica", "price": 5000, "artistId": 1},
				{"id": 2, "title": "Les Demoiselles", "price": 1500, "artistId": 1},
				{"id": 3, "title": "Persistence", "price": 900.5, "artistId": 2},
			})

			order, err := exp.ParseOrdering("price desc")
			require.NoError(t, err)
			sel := &query.Select{
				Entity:    "Painting",
				Where:     exp.MustParse("artist.name like 'P%' or price < 1000"),
				Orderings: []exp.Ordering{order},
				Offset:    1,
			}
			objects, err := sel.Execute(ctx, st, tr, d)
			require.NoError(t, err)
			assert.Equal(t, []string{"Les Demoiselles", "Persistence"}, titles(objects))

			inList := &query.Select{Entity: "Artist", Where: exp.MustParse("paintings.id in (2, 3)"), Distinct: true}
			artists, err := inList.Execute(ctx, st, tr, d)
			require.NoError(t, err)
			assert.Len(t, artists, 2)
		})
	}
}

func seed(t *testing.T, st *store.Store, tr *translate.Translator, d *dialect.Dialect, sc *schema.Schema, entity string, rows []map[string]any) {
	t.Helper()
	e, err := sc.Entity(entity)
	require.NoError(t, err)
	q, err := batch.InsertRows(e, rows)
	require.NoError(t, err)
	w := batch.New(tr, d, nil)
	require.NoError(t, st.WithTx(context.Background(), func(tx *sql.Tx) error {
		res, err := w.Execute(context.Background(), tx, q)
		if err == nil {
			assert.Equal(t, int64(len(rows)), res.RowsAffected)
		}
		return err
	}))
}

func titles(objects []*access.Object) []string {
	out := make([]string, len(objects))
	for i, o := range objects {
		v, _ := o.ReadProperty("title")
		out[i], _ = v.(string)
	}
	return out
}
