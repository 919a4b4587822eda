package repository

import (
	"reflect"
	"testing"

	"github.com/inkwire/dispatch/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testDB struct {
	*pg.DB
	rawDB *gorm.DB
}

func setupTestDB(t *testing.T) *testDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&NewsletterEntity{},
		&ContactEntity{},
		&ContactTagEntity{},
		&SendingIdentityEntity{},
		&SendJobEntity{},
		&DeliveryEntity{},
		&EventEntity{},
	)
	require.NoError(t, err)

	// AutoMigrate cannot express the partial unique index that backs
	// idempotent job submits, so it is created by hand like in the
	// production migration.
	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_send_jobs_idempotency
		ON send_jobs (newsletter_id, idempotency_key)
		WHERE status <> 'canceled'`).Error
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return &testDB{
		DB:    pgDB,
		rawDB: db,
	}
}
