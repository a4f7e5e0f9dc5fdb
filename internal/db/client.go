package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

type Params struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

func (p Params) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable", p.Host, p.Port, p.User, p.Password, p.Name)
}

func NewDb(ctx context.Context, params Params) (*Database, error) {
	pool, err := pgxpool.Connect(ctx, params.DSN())
	if err != nil {
		return nil, err
	}
	return NewDatabase(pool), nil
}
