package db

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"grouping-server-go/config"
	"grouping-server-go/models"
	"grouping-server-go/roster"
)

func newTestService(t *testing.T) (*RedisService, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRedisService(client, logger), mr
}

func TestClasses(t *testing.T) {
	ctx := context.Background()

	t.Run("add and fetch", func(t *testing.T) {
		s, _ := newTestService(t)

		require.NoError(t, s.AddClass(ctx, models.Clazz{ID: "C1", Name: "First"}))
		require.NoError(t, s.AddClass(ctx, models.Clazz{ID: "C2", Name: "Second"}))

		clazz, err := s.GetClassByID(ctx, "C1")
		require.NoError(t, err)
		require.Equal(t, &models.Clazz{ID: "C1", Name: "First"}, clazz)

		classes, err := s.GetAllClasses(ctx)
		require.NoError(t, err)
		require.ElementsMatch(t, []models.Clazz{{ID: "C1", Name: "First"}, {ID: "C2", Name: "Second"}}, classes)

		exists, err := s.ClassExists(ctx, "C2")
		require.NoError(t, err)
		require.True(t, exists)
	})

	t.Run("missing class is nil without error", func(t *testing.T) {
		s, _ := newTestService(t)

		clazz, err := s.GetClassByID(ctx, "nope")
		require.NoError(t, err)
		require.Nil(t, clazz)

		classes, err := s.GetAllClasses(ctx)
		require.NoError(t, err)
		require.Empty(t, classes)
	})

	t.Run("rejects empty fields", func(t *testing.T) {
		s, _ := newTestService(t)

		require.Error(t, s.AddClass(ctx, models.Clazz{ID: "C1"}))
	})
}

func TestRoster(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps insertion order and raw weights", func(t *testing.T) {
		s, _ := newTestService(t)

		require.NoError(t, s.AddStudent(ctx, "C1", models.RosterEntry{Row: 2, Name: "Alice", Sex: "F", Weight: "40"}))
		require.NoError(t, s.AddStudent(ctx, "C1", models.RosterEntry{Row: 3, Name: "Bruno", Sex: "M", Weight: "abc"}))

		entries, err := s.GetRoster(ctx, "C1")
		require.NoError(t, err)
		require.Equal(t, []models.RosterEntry{
			{Row: 2, Name: "Alice", Sex: "F", Weight: "40"},
			{Row: 3, Name: "Bruno", Sex: "M", Weight: "abc"},
		}, entries)

		exists, err := s.ClassExists(ctx, "C1")
		require.NoError(t, err)
		require.True(t, exists, "class is created on first student")
	})

	t.Run("rejects unnamed students", func(t *testing.T) {
		s, _ := newTestService(t)

		err := s.AddStudent(ctx, "C1", models.RosterEntry{Sex: "F", Weight: "40"})

		require.ErrorIs(t, err, ErrMissingName)
	})

	t.Run("empty roster", func(t *testing.T) {
		s, _ := newTestService(t)

		entries, err := s.GetRoster(ctx, "C1")
		require.NoError(t, err)
		require.Empty(t, entries)
	})

	t.Run("clear keeps the class", func(t *testing.T) {
		s, mr := newTestService(t)
		require.NoError(t, s.AddStudent(ctx, "C1", models.RosterEntry{Row: 2, Name: "Alice", Sex: "F", Weight: "40"}))

		require.NoError(t, s.ClearRoster(ctx, "C1"))

		entries, err := s.GetRoster(ctx, "C1")
		require.NoError(t, err)
		require.Empty(t, entries)
		require.False(t, mr.Exists("student:C1:1"))
		exists, err := s.ClassExists(ctx, "C1")
		require.NoError(t, err)
		require.True(t, exists)
	})
}

func TestImportRoster(t *testing.T) {
	ctx := context.Background()
	csv := "Prénom;Sexe;Poids\nAlice;F;40\nBruno;M;55\n"

	t.Run("appends or replaces", func(t *testing.T) {
		s, _ := newTestService(t)

		n, err := s.ImportRoster(ctx, "C1", "class.csv", strings.NewReader(csv), false)
		require.NoError(t, err)
		require.Equal(t, 2, n)

		_, err = s.ImportRoster(ctx, "C1", "class.csv", strings.NewReader(csv), false)
		require.NoError(t, err)
		entries, err := s.GetRoster(ctx, "C1")
		require.NoError(t, err)
		require.Len(t, entries, 4)

		_, err = s.ImportRoster(ctx, "C1", "class.csv", strings.NewReader(csv), true)
		require.NoError(t, err)
		entries, err = s.GetRoster(ctx, "C1")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		require.Equal(t, "Alice", entries[0].Name)

		clazz, err := s.GetClassByID(ctx, "C1")
		require.NoError(t, err)
		require.Equal(t, "Imported Class C1", clazz.Name)
	})

	t.Run("rejects the whole file on a missing name", func(t *testing.T) {
		s, _ := newTestService(t)

		_, err := s.ImportRoster(ctx, "C1", "class.csv", strings.NewReader("name;sex;weight\nA;F;1\n;M;2\n"), false)

		require.ErrorIs(t, err, ErrMissingName)
		require.Contains(t, err.Error(), "rows 3")
		entries, err := s.GetRoster(ctx, "C1")
		require.NoError(t, err)
		require.Empty(t, entries)
	})

	t.Run("propagates parse errors", func(t *testing.T) {
		s, _ := newTestService(t)

		_, err := s.ImportRoster(ctx, "C1", "class.csv", strings.NewReader("a;b\n"), false)
		require.ErrorIs(t, err, roster.ErrMissingColumn)

		_, err = s.ImportRoster(ctx, "C1", "class.doc", strings.NewReader(""), false)
		require.ErrorIs(t, err, roster.ErrUnsupportedFormat)
	})
}

func TestRuns(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip until expiry", func(t *testing.T) {
		s, mr := newTestService(t)
		run := &models.Run{
			ID:        "run-1",
			ClassID:   "C1",
			CreatedAt: time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC),
			Groups: []models.Group{
				{Index: 1, Members: []models.Student{{Name: "Alice", Sex: "F", Weight: 40.5}}},
			},
			Dropped:   []models.Student{},
			Mixed:     true,
			MaxSpread: 10,
			GroupSize: 4,
		}

		require.NoError(t, s.SaveRun(ctx, run, time.Minute))

		got, err := s.GetRun(ctx, "run-1")
		require.NoError(t, err)
		require.Equal(t, run, got)

		mr.FastForward(2 * time.Minute)

		got, err = s.GetRun(ctx, "run-1")
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("requires an ID", func(t *testing.T) {
		s, _ := newTestService(t)

		require.Error(t, s.SaveRun(ctx, &models.Run{}, time.Minute))
	})
}

func TestSeedIfEmpty(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)

	seeded, err := s.SeedIfEmpty(ctx)
	require.NoError(t, err)
	require.True(t, seeded)

	entries, err := s.GetRoster(ctx, demoClassID)
	require.NoError(t, err)
	require.Len(t, entries, 8)

	seeded, err = s.SeedIfEmpty(ctx)
	require.NoError(t, err)
	require.False(t, seeded)
}

func TestInitializeRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	client, err := InitializeRedisClient(context.Background(), config.RedisConfig{Addr: addr})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	mr.Close()
	_, err = InitializeRedisClient(context.Background(), config.RedisConfig{Addr: addr})
	require.Error(t, err)
}
