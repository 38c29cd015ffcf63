package models

import "github.com/Temutjin2k/driver-match-system/pkg/uuid"

type Customer struct {
	ID    uuid.UUID
	Name  string
	Phone string
}
