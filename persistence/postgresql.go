// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// PostgreSQL driver
	_ "github.com/lib/pq"

	"github.com/serpientes/gameserver/gameerr"
	"github.com/serpientes/gameserver/models"
)

// Reporting serves read-only aggregate queries over raw SQL. It is kept
// apart from the GORM store so the admin RPC endpoint can run joins
// without loading entities.
type Reporting struct {
	db *sql.DB
}

func NewReporting(host string, port int, user, password, dbname string) (*Reporting, error) {
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

	return &Reporting{db: db}, nil
}

// GetUserStats aggregates a user's lifetime record with their move count.
func (r *Reporting) GetUserStats(userID string) (*models.UserStats, error) {
	const query = `
        SELECT u.id, u.username, u.games_played, u.games_won, u.coins,
               COUNT(m.id) AS total_moves
        FROM users u
        LEFT JOIN players p ON p.user_id = u.id
        LEFT JOIN moves m ON m.player_id = p.id
        WHERE u.id = $1
        GROUP BY u.id, u.username, u.games_played, u.games_won, u.coins`

	var stats models.UserStats
	err := r.db.QueryRow(query, userID).Scan(
		&stats.UserID,
		&stats.Username,
		&stats.GamesPlayed,
		&stats.GamesWon,
		&stats.Coins,
		&stats.TotalMoves,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, gameerr.NotFoundf("user %s not found", userID)
		}
		return nil, err
	}
	return &stats, nil
}

// CountRoomsByStatus returns a census of rooms grouped by status.
func (r *Reporting) CountRoomsByStatus() (map[models.RoomStatus]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM rooms GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	census := make(map[models.RoomStatus]int)
	for rows.Next() {
		var status models.RoomStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		census[status] = count
	}
	return census, rows.Err()
}

func (r *Reporting) Close() error {
	return r.db.Close()
}
