package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/littlewalk/go-walk/common"
	"github.com/littlewalk/go-walk/models"
)

var _ models.BreedRepository = &CatalogDatabase{}
var _ models.DogRepository = &CatalogDatabase{}

type CatalogDatabase struct {
	pool *pgxpool.Pool
}

func NewCatalogDb(pool *pgxpool.Pool) *CatalogDatabase {
	return &CatalogDatabase{pool}
}

func (cdb *CatalogDatabase) CreateBreed(ctx context.Context, breed *models.Breed) error {
	dbCtx, dbCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer dbCancel()

	if _, err := cdb.pool.Exec(dbCtx, "INSERT INTO breed (id, category, name) VALUES ($1, $2, $3)", breed.Id, string(breed.Category), breed.Name); err != nil {
		return models.NewBackendError("create breed", err)
	}
	return nil
}

func (cdb *CatalogDatabase) DeleteBreed(ctx context.Context, id string) (bool, error) {
	return cdb.delete(ctx, "breed", id)
}

func (cdb *CatalogDatabase) QueryBreeds(ctx context.Context, query models.BreedQuery) ([]*models.Breed, int64, error) {
	builder := sqlBuilder{}
	terms := []string{"TRUE"}
	if query.Id != nil {
		terms = append(terms, "id = "+builder.arg(*query.Id))
	}
	if query.Category != nil {
		terms = append(terms, "category = "+builder.arg(string(*query.Category)))
	}
	if query.Name != nil {
		terms = append(terms, "name = "+builder.arg(*query.Name))
	}

	dbCtx, dbCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer dbCancel()

	rows, err := cdb.pool.Query(dbCtx, "SELECT id, category, name FROM breed WHERE "+strings.Join(terms, " AND ")+" ORDER BY name, id", builder.args...)
	if err != nil {
		return nil, 0, models.NewBackendError("query breeds", err)
	}
	defer rows.Close()

	breeds := make([]*models.Breed, 0)
	for rows.Next() {
		breed := new(models.Breed)
		var category string
		if err = rows.Scan(&breed.Id, &category, &breed.Name); err != nil {
			return nil, 0, models.NewBackendError("query breeds", err)
		}
		breed.Category = models.Category(category)
		breeds = append(breeds, breed)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, models.NewBackendError("query breeds", err)
	}
	return breeds, int64(len(breeds)), nil
}

func (cdb *CatalogDatabase) CreateDog(ctx context.Context, dog *models.Dog) error {
	breed, err := json.Marshal(dog.Breed)
	if err != nil {
		return err
	}
	tags := dog.Tags
	if tags == nil {
		tags = []string{}
	}

	dbCtx, dbCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer dbCancel()

	if _, err = cdb.pool.Exec(
		dbCtx,
		"INSERT INTO dog (id, name, gender, breed, birthday, owner_id, tags, portrait_id) VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8)",
		dog.Id,
		dog.Name,
		string(dog.Gender),
		string(breed),
		dog.Birthday,
		dog.OwnerId,
		tags,
		dog.PortraitId,
	); err != nil {
		return models.NewBackendError("create dog", err)
	}
	return nil
}

// UpdateDog locks the row, applies the partial update in memory and writes the full record back.
func (cdb *CatalogDatabase) UpdateDog(ctx context.Context, id string, update models.DogUpdate) (*models.Dog, error) {
	dbCtx, dbCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer dbCancel()

	tx, err := cdb.pool.Begin(dbCtx)
	if err != nil {
		return nil, models.NewBackendError("update dog", err)
	}
	defer tx.Rollback(dbCtx)

	rows, err := tx.Query(dbCtx, "SELECT "+dogColumns+" FROM dog WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, models.NewBackendError("update dog", err)
	}
	dogs, err := scanDogs(rows)
	if err != nil {
		return nil, models.NewBackendError("update dog", err)
	} else if len(dogs) == 0 {
		return nil, models.ErrNotFound
	}
	dog := dogs[0]
	update.Apply(dog)
	breed, err := json.Marshal(dog.Breed)
	if err != nil {
		return nil, err
	}
	if _, err = tx.Exec(
		dbCtx,
		"UPDATE dog SET name = $2, gender = $3, breed = $4::jsonb, birthday = $5, tags = $6, portrait_id = $7 WHERE id = $1",
		dog.Id,
		dog.Name,
		string(dog.Gender),
		string(breed),
		dog.Birthday,
		dog.Tags,
		dog.PortraitId,
	); err != nil {
		return nil, models.NewBackendError("update dog", err)
	}
	if err = tx.Commit(dbCtx); err != nil {
		return nil, models.NewBackendError("update dog", err)
	}
	return dog, nil
}

func (cdb *CatalogDatabase) DeleteDog(ctx context.Context, id string) (bool, error) {
	return cdb.delete(ctx, "dog", id)
}

const dogColumns = "id, name, gender, breed, birthday, owner_id, tags, portrait_id"

func (cdb *CatalogDatabase) QueryDogs(ctx context.Context, query models.DogQuery) ([]*models.Dog, error) {
	builder := sqlBuilder{}
	terms := []string{"TRUE"}
	if query.Id != nil {
		terms = append(terms, "id = "+builder.arg(*query.Id))
	}
	if query.IdIn != nil {
		terms = append(terms, fmt.Sprintf("id = ANY(%s::text[])", builder.arg(query.IdIn)))
	}
	if query.OwnerId != nil {
		terms = append(terms, "owner_id = "+builder.arg(*query.OwnerId))
	}
	sql := "SELECT " + dogColumns + " FROM dog WHERE " + strings.Join(terms, " AND ") + " ORDER BY created_at, id" + builder.page(query.Pagination)

	dbCtx, dbCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer dbCancel()

	rows, err := cdb.pool.Query(dbCtx, sql, builder.args...)
	if err != nil {
		return nil, models.NewBackendError("query dogs", err)
	}
	dogs, err := scanDogs(rows)
	if err != nil {
		return nil, models.NewBackendError("query dogs", err)
	}
	return dogs, nil
}

func (cdb *CatalogDatabase) ExistsDog(ctx context.Context, query models.DogQuery) (bool, error) {
	query.Pagination = &models.Pagination{Limit: 1}
	dogs, err := cdb.QueryDogs(ctx, query)
	if err != nil {
		return false, err
	}
	return len(dogs) > 0, nil
}

func (cdb *CatalogDatabase) delete(ctx context.Context, table, id string) (bool, error) {
	dbCtx, dbCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer dbCancel()

	tag, err := cdb.pool.Exec(dbCtx, "DELETE FROM "+table+" WHERE id = $1", id)
	if err != nil {
		return false, models.NewBackendError("delete from "+table, err)
	}
	return tag.RowsAffected() > 0, nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

func scanDogs(rows rowScanner) ([]*models.Dog, error) {
	defer rows.Close()

	dogs := make([]*models.Dog, 0)
	for rows.Next() {
		dog := new(models.Dog)
		var gender string
		var breed []byte
		if err := rows.Scan(&dog.Id, &dog.Name, &gender, &breed, &dog.Birthday, &dog.OwnerId, &dog.Tags, &dog.PortraitId); err != nil {
			return nil, err
		}
		dog.Gender = models.Gender(gender)
		if err := json.Unmarshal(breed, &dog.Breed); err != nil {
			return nil, err
		}
		dogs = append(dogs, dog)
	}
	return dogs, rows.Err()
}
