package generator

import "errors"

var (
	ErrInvalidTables     = errors.New("invalid generator tables")
	ErrEmptyIdentity     = errors.New("empty identity")
	ErrDuplicateIdentity = errors.New("duplicate identity")
	ErrNoTowers          = errors.New("no towers to correlate tickets with")
	ErrMetricGraph       = errors.New("invalid metric dependency graph")
)
