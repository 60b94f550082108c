package usecase

import "fmt"

// ErrPersistence indicates an infrastructure/repository failure inside a use case
var ErrPersistence = fmt.Errorf("messaging use case persistence error")

// ErrItemNotFound indicates the referenced item does not exist in the listing service
var ErrItemNotFound = fmt.Errorf("messaging use case: item not found")

// ErrRoomNotFound indicates the referenced room does not exist
var ErrRoomNotFound = fmt.Errorf("messaging use case: room not found")
