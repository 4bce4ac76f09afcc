package navgate

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Organizations interface {
	repository.Repository[*Organization]

	Create(ctx context.Context, record *Organization, criteria ...repository.InsertCriteria) (*Organization, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Organization, criteria ...repository.InsertCriteria) (*Organization, error)
	GetByName(ctx context.Context, name string) (*Organization, error)
	GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Organization, error)
	GetOrCreateByName(ctx context.Context, record *Organization) (*Organization, error)
	GetOrCreateByNameTx(ctx context.Context, tx bun.IDB, record *Organization) (*Organization, error)
}

type organizations struct {
	repository.Repository[*Organization]
	db *bun.DB
}

var (
	_ Organizations                        = (*organizations)(nil)
	_ repository.Repository[*Organization] = (*organizations)(nil)
)

func NewOrganizationsRepository(db *bun.DB) Organizations {
	repo := repository.NewRepository[*Organization](db, repository.ModelHandlers[*Organization]{
		NewRecord: func() *Organization { return &Organization{} },
		GetID: func(o *Organization) uuid.UUID {
			if o == nil {
				return uuid.Nil
			}
			return o.ID
		},
		SetID: func(o *Organization, id uuid.UUID) {
			if o != nil {
				o.ID = id
			}
		},
	})

	return &organizations{
		Repository: repo,
		db:         db,
	}
}

func (a *organizations) Create(ctx context.Context, record *Organization, criteria ...repository.InsertCriteria) (*Organization, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *organizations) CreateTx(ctx context.Context, tx bun.IDB, record *Organization, criteria ...repository.InsertCriteria) (*Organization, error) {
	prepareOrganizationDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *organizations) GetByName(ctx context.Context, name string) (*Organization, error) {
	return a.GetByNameTx(ctx, a.db, name)
}

func (a *organizations) GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Organization, error) {
	record := &Organization{}

	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", strings.TrimSpace(name)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"name": name,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *organizations) GetOrCreateByName(ctx context.Context, record *Organization) (*Organization, error) {
	return a.GetOrCreateByNameTx(ctx, a.db, record)
}

func (a *organizations) GetOrCreateByNameTx(ctx context.Context, tx bun.IDB, record *Organization) (*Organization, error) {
	org, err := a.GetByNameTx(ctx, tx, record.Name)
	if err == nil {
		return org, nil
	}

	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	return a.CreateTx(ctx, tx, record)
}

// prepareOrganizationDefaults normalizes the name and derives a deterministic
// ID from it so the same organization name always maps to the same record.
func prepareOrganizationDefaults(record *Organization) {
	if record == nil {
		return
	}

	record.Name = strings.TrimSpace(record.Name)

	if record.ID == uuid.Nil && record.Name != "" {
		if id, err := hashid.NewUUID(strings.ToLower(record.Name)); err == nil {
			record.ID = id
		}
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
