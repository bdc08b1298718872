package domain

import "errors"

var (
	ErrEmptyPersonName     = errors.New("person name is empty")
	ErrDuplicatePerson     = errors.New("a person with this name already exists")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidEdit         = errors.New("invalid transaction edit")
)
