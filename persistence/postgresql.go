// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/wfunc/laddergame/models"
)

// PostgreSQL is a plain database/sql account store, for deployments that
// prefer raw SQL over the GORM implementation.
type PostgreSQL struct {
	db *sql.DB
}

func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS accounts (
            id SERIAL PRIMARY KEY,
            player_id TEXT UNIQUE NOT NULL,
            display_name TEXT NOT NULL,
            token TEXT UNIQUE NOT NULL,
            wins INT NOT NULL DEFAULT 0,
            losses INT NOT NULL DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`)
	return err
}

func (p *PostgreSQL) FindByToken(token string) (*models.Account, error) {
	var account models.Account
	err := p.db.QueryRow(`
        SELECT player_id, display_name, wins, losses, created_at, updated_at
        FROM accounts WHERE token = $1`, token).
		Scan(&account.PlayerID, &account.DisplayName, &account.Wins,
			&account.Losses, &account.CreatedAt, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (p *PostgreSQL) RecordResult(playerID string, won bool) error {
	column := "losses"
	if won {
		column = "wins"
	}

	result, err := p.db.Exec(fmt.Sprintf(`
        UPDATE accounts
        SET %s = %s + 1, updated_at = CURRENT_TIMESTAMP
        WHERE player_id = $1`, column, column), playerID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (p *PostgreSQL) GetPlayerStats(playerID string) (*models.PlayerStats, error) {
	stats := models.PlayerStats{PlayerID: playerID}
	err := p.db.QueryRow(`
        SELECT wins, losses FROM accounts WHERE player_id = $1`, playerID).
		Scan(&stats.Wins, &stats.Losses)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	stats.TotalGames = stats.Wins + stats.Losses
	return &stats, nil
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
