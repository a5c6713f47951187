package models

import (
	"time"
)

type Gender string

const (
	Gender_Other  Gender = "Other"
	Gender_Male   Gender = "Male"
	Gender_Female Gender = "Female"
)

type Category string

const (
	Category_Small  Category = "Small"
	Category_Medium Category = "Medium"
	Category_Large  Category = "Large"
	Category_Giant  Category = "Giant"
)

func (g Gender) Valid() bool {
	switch g {
	case Gender_Other, Gender_Male, Gender_Female:
		return true
	}
	return false
}

func (c Category) Valid() bool {
	switch c {
	case Category_Small, Category_Medium, Category_Large, Category_Giant:
		return true
	}
	return false
}

// Breed is immutable reference data.
type Breed struct {
	Id       string   `json:"id" dynamodbav:"id"`
	Category Category `json:"category" dynamodbav:"category"`
	Name     string   `json:"name" dynamodbav:"name"`
}

type Dog struct {
	Id         string    `json:"id" dynamodbav:"id"`
	Name       string    `json:"name" dynamodbav:"name"`
	Gender     Gender    `json:"gender" dynamodbav:"gender"`
	Breed      Breed     `json:"breed" dynamodbav:"breed"`
	Birthday   time.Time `json:"birthday" dynamodbav:"birthday"`
	OwnerId    string    `json:"ownerId" dynamodbav:"owner_id"`
	Tags       []string  `json:"tags" dynamodbav:"tags"`
	PortraitId *string   `json:"portraitId,omitempty" dynamodbav:"portrait_id,omitempty"`
}

type BreedCreate struct {
	Category Category `json:"category" validate:"required"`
	Name     string   `json:"name" validate:"required,max=64"`
}

type BreedQuery struct {
	Id       *string
	Category *Category
	Name     *string
}

func (q BreedQuery) Matches(b *Breed) bool {
	if q.Id != nil && *q.Id != b.Id {
		return false
	}
	if q.Category != nil && *q.Category != b.Category {
		return false
	}
	if q.Name != nil && *q.Name != b.Name {
		return false
	}
	return true
}

type DogCreate struct {
	OwnerId    string    `json:"-" validate:"required"`
	Name       string    `json:"name" validate:"required,max=64"`
	Gender     Gender    `json:"gender" validate:"required"`
	BreedId    string    `json:"breedId" validate:"required"`
	Birthday   time.Time `json:"birthday" validate:"required"`
	Tags       []string  `json:"tags" validate:"max=32,dive,required,max=32"`
	PortraitId *string   `json:"portraitId,omitempty"`
}

// DogUpdate is a partial update: nil fields are left unchanged.
type DogUpdate struct {
	Name       *string    `json:"name,omitempty" validate:"omitempty,min=1,max=64"`
	Gender     *Gender    `json:"gender,omitempty"`
	Breed      *Breed     `json:"-"`
	BreedId    *string    `json:"breedId,omitempty"`
	Birthday   *time.Time `json:"birthday,omitempty"`
	Tags       *[]string  `json:"tags,omitempty"`
	PortraitId *string    `json:"portraitId,omitempty"`
}

func (u DogUpdate) Apply(d *Dog) {
	if u.Name != nil {
		d.Name = *u.Name
	}
	if u.Gender != nil {
		d.Gender = *u.Gender
	}
	if u.Breed != nil {
		d.Breed = *u.Breed
	}
	if u.Birthday != nil {
		d.Birthday = u.Birthday.UTC()
	}
	if u.Tags != nil {
		d.Tags = DedupeTags(*u.Tags)
	}
	if u.PortraitId != nil {
		portraitId := *u.PortraitId
		d.PortraitId = &portraitId
	}
}

type DogQuery struct {
	Id         *string
	IdIn       []string
	OwnerId    *string
	Pagination *Pagination
}

func (q DogQuery) Matches(d *Dog) bool {
	if q.Id != nil && *q.Id != d.Id {
		return false
	}
	if q.OwnerId != nil && *q.OwnerId != d.OwnerId {
		return false
	}
	if q.IdIn != nil && !contains(q.IdIn, d.Id) {
		return false
	}
	return true
}

// DedupeTags keeps the first occurrence of each tag, in order.
func DedupeTags(tags []string) []string {
	return uniqueStrings(tags)
}

func (d Dog) Clone() Dog {
	clone := d
	if d.Tags != nil {
		clone.Tags = append([]string{}, d.Tags...)
	}
	if d.PortraitId != nil {
		portraitId := *d.PortraitId
		clone.PortraitId = &portraitId
	}
	return clone
}
