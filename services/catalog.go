package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/littlewalk/go-walk/models"
)

// CatalogService manages the dog and breed reference data.
type CatalogService struct {
	breeds models.BreedRepository
	dogs   models.DogRepository
	logger models.Logger
}

func NewCatalogService(breeds models.BreedRepository, dogs models.DogRepository, logger models.Logger) *CatalogService {
	return &CatalogService{breeds, dogs, logger}
}

func (c *CatalogService) CreateBreed(ctx context.Context, create models.BreedCreate) (*models.Breed, error) {
	if err := validateInput(create); err != nil {
		return nil, err
	} else if !create.Category.Valid() {
		return nil, &models.ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", create.Category)}
	}
	breed := &models.Breed{Id: uuid.New().String(), Category: create.Category, Name: create.Name}
	if err := c.breeds.CreateBreed(ctx, breed); err != nil {
		return nil, err
	}
	c.logger.Debugf("catalog: created breed %s (%s)", breed.Id, breed.Name)
	return breed, nil
}

func (c *CatalogService) DeleteBreed(ctx context.Context, id string) (bool, error) {
	if err := requireId("breedId", id); err != nil {
		return false, err
	}
	return c.breeds.DeleteBreed(ctx, id)
}

// QueryBreeds returns the matching breeds with their total count.
func (c *CatalogService) QueryBreeds(ctx context.Context, query models.BreedQuery) ([]*models.Breed, int64, error) {
	if query.Category != nil && !query.Category.Valid() {
		return nil, 0, &models.ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", *query.Category)}
	}
	return c.breeds.QueryBreeds(ctx, query)
}

func (c *CatalogService) CreateDog(ctx context.Context, create models.DogCreate) (*models.Dog, error) {
	if err := validateInput(create); err != nil {
		return nil, err
	} else if !create.Gender.Valid() {
		return nil, &models.ValidationError{Field: "gender", Reason: fmt.Sprintf("unknown gender %q", create.Gender)}
	}
	breed, err := c.breed(ctx, create.BreedId)
	if err != nil {
		return nil, err
	}
	dog := &models.Dog{
		Id:         uuid.New().String(),
		Name:       create.Name,
		Gender:     create.Gender,
		Breed:      *breed,
		Birthday:   create.Birthday.UTC(),
		OwnerId:    create.OwnerId,
		Tags:       models.DedupeTags(create.Tags),
		PortraitId: create.PortraitId,
	}
	if err = c.dogs.CreateDog(ctx, dog); err != nil {
		return nil, err
	}
	return dog, nil
}

// UpdateDog applies a partial update to a dog the actor owns. Walk requests keep their own snapshots.
func (c *CatalogService) UpdateDog(ctx context.Context, actorId, id string, update models.DogUpdate) (*models.Dog, error) {
	if err := c.checkOwner(ctx, actorId, id); err != nil {
		return nil, err
	} else if err = validateInput(update); err != nil {
		return nil, err
	} else if update.Gender != nil && !update.Gender.Valid() {
		return nil, &models.ValidationError{Field: "gender", Reason: fmt.Sprintf("unknown gender %q", *update.Gender)}
	}
	if update.BreedId != nil {
		breed, err := c.breed(ctx, *update.BreedId)
		if err != nil {
			return nil, err
		}
		update.Breed = breed
	}
	return c.dogs.UpdateDog(ctx, id, update)
}

func (c *CatalogService) UpdateDogPortrait(ctx context.Context, actorId, id, portraitId string) (*models.Dog, error) {
	if err := requireId("portraitId", portraitId); err != nil {
		return nil, err
	}
	return c.UpdateDog(ctx, actorId, id, models.DogUpdate{PortraitId: &portraitId})
}

func (c *CatalogService) DeleteDog(ctx context.Context, actorId, id string) error {
	if err := c.checkOwner(ctx, actorId, id); err != nil {
		return err
	}
	if deleted, err := c.dogs.DeleteDog(ctx, id); err != nil {
		return err
	} else if !deleted {
		return fmt.Errorf("dog %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (c *CatalogService) MyDogs(ctx context.Context, ownerId string, page *models.Pagination) ([]*models.Dog, error) {
	if err := requireActor(ownerId); err != nil {
		return nil, err
	}
	return c.dogs.QueryDogs(ctx, models.DogQuery{OwnerId: &ownerId, Pagination: page})
}

func (c *CatalogService) IsOwnerOfDog(ctx context.Context, ownerId, dogId string) (bool, error) {
	return c.dogs.ExistsDog(ctx, models.DogQuery{Id: &dogId, OwnerId: &ownerId})
}

// checkOwner distinguishes a missing dog from one that belongs to somebody else.
func (c *CatalogService) checkOwner(ctx context.Context, actorId, id string) error {
	if err := requireActor(actorId); err != nil {
		return err
	} else if err = requireId("dogId", id); err != nil {
		return err
	}
	if isOwner, err := c.IsOwnerOfDog(ctx, actorId, id); err != nil {
		return err
	} else if isOwner {
		return nil
	}
	if exists, err := c.dogs.ExistsDog(ctx, models.DogQuery{Id: &id}); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("dog %s: %w", id, models.ErrForbidden)
	}
	return fmt.Errorf("dog %s: %w", id, models.ErrNotFound)
}

func (c *CatalogService) breed(ctx context.Context, breedId string) (*models.Breed, error) {
	breeds, _, err := c.breeds.QueryBreeds(ctx, models.BreedQuery{Id: &breedId})
	if err != nil {
		return nil, err
	} else if len(breeds) == 0 {
		return nil, &models.ValidationError{Field: "breedId", Reason: fmt.Sprintf("breed %s not found", breedId)}
	}
	return breeds[0], nil
}
