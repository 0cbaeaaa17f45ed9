package storage

import (
	"context"
	"fmt"

	"github.com/levenlabs/go-lflag"

	"github.com/mtecbridge/mtecbridge/pkg/common"
)

// configured lets Configured hand out the Database before flags are parsed.
type configured struct{ Database }

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", common.Getenv("STORAGE_PROVIDER", "none"), "Storage provider to use (available: none, firestore, postgres)")

	p := &configured{}

	fs := configuredFirestore()
	pg := configuredPostgres()

	lflag.Do(func() {
		switch *provider {
		case "", "none":
			p.Database = None{}
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
			p.Database = fs
		case "postgres":
			if err := pg.Validate(); err != nil {
				panic(fmt.Sprintf("postgres validation failed: %v", err))
			}
			if err := pg.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("postgres init failed: %v", err))
			}
			p.Database = pg
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return p
}

// Enabled reports whether db persists anything.
func Enabled(db Database) bool {
	if w, ok := db.(*configured); ok {
		db = w.Database
	}
	_, none := db.(None)
	return db != nil && !none
}
