package ports

import "github.com/ghalamif/ModFlow/internal/domain"

// Trigger decides whether a decoded reading is worth persisting.
type Trigger interface {
	ShouldPersist(r domain.Reading) bool
}
