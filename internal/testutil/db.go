// Package testutil поднимает PostgreSQL в контейнере для интеграционных тестов.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shaiso/cronfleet/internal/domain"
	"github.com/shaiso/cronfleet/internal/repo"
)

const (
	dbUser     = "cronfleet"
	dbPassword = "cronfleet"
	dbName     = "cronfleet"
)

// TestDB — тестовая БД: контейнер, DSN и пул с применёнными миграциями.
type TestDB struct {
	Pool      *pgxpool.Pool
	DSN       string
	container testcontainers.Container
}

// StartPostgres запускает контейнер postgres, применяет миграции
// и открывает пул. Если Docker недоступен — возвращает ошибку.
func StartPostgres(ctx context.Context) (db *TestDB, err error) {
	// testcontainers паникует, если не может найти docker host
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("docker unavailable: %v", r)
		}
	}()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     dbUser,
			"POSTGRES_PASSWORD": dbPassword,
			"POSTGRES_DB":       dbName,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("container port: %w", err)
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUser, dbPassword, host, port.Port(), dbName)

	if err := repo.MigrateUp(dsn); err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	pool, err := repo.NewPool(ctx, dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	return &TestDB{Pool: pool, DSN: dsn, container: container}, nil
}

// Close закрывает пул и останавливает контейнер.
func (db *TestDB) Close() {
	db.Pool.Close()
	_ = db.container.Terminate(context.Background())
}

// Require пропускает тест, если БД не поднята (short-режим или нет Docker),
// и очищает таблицы перед тестом.
func Require(t *testing.T, db *TestDB) *TestDB {
	t.Helper()
	if db == nil {
		t.Skip("postgres is not available (short mode or no docker)")
	}
	db.Truncate(t)
	return db
}

// Truncate очищает tasks и task_history, включая seed-задачи.
func (db *TestDB) Truncate(t *testing.T) {
	t.Helper()
	_, err := db.Pool.Exec(context.Background(), `TRUNCATE task_history, tasks RESTART IDENTITY`)
	if err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

// InsertTask создаёт незабранную задачу (аналог provisioning-миграции).
func (db *TestDB) InsertTask(t *testing.T, name string, intervalSec int, functionName string, nextRunAt time.Time) *domain.Task {
	t.Helper()

	var id int64
	err := db.Pool.QueryRow(context.Background(), `
		INSERT INTO tasks (name, interval_sec, function_name, next_run_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, name, intervalSec, functionName, nextRunAt).Scan(&id)
	if err != nil {
		t.Fatalf("insert task %s: %v", name, err)
	}

	task, err := repo.NewTaskRepo(db.Pool).GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load task %s: %v", name, err)
	}
	return task
}
