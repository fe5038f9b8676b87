package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"grouping-server-go/config"
	"grouping-server-go/models"
	"grouping-server-go/roster"
)

const (
	classesKey          = "classes"   // Set: Stores all class IDs
	classInfoPrefix     = "class:"    // Hash prefix: class:{id} -> stores class details
	classStudentsPrefix = "class:"    // List prefix: class:{id}:students -> student IDs in roster order
	studentInfoPrefix   = "student:"  // Hash prefix: student:{id} -> stores student details
	runPrefix           = "grouping:" // String prefix: grouping:{id} -> JSON encoded run, expires
)

const (
	demoClassID   = "C_DEMO_6B"
	demoClassName = "Demo class 6B"
)

// ErrMissingName is returned when a roster line has no student name.
var ErrMissingName = errors.New("student name cannot be empty")

// RedisService handles operations with the Redis database
type RedisService struct {
	Client *redis.Client
	Logger *slog.Logger
}

// NewRedisService creates a new RedisService instance
func NewRedisService(client *redis.Client, logger *slog.Logger) *RedisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisService{
		Client: client,
		Logger: logger,
	}
}

// Helper to generate class info key
func getClassInfoKey(classID string) string {
	return classInfoPrefix + classID
}

// Helper to generate class students list key
func getClassStudentsKey(classID string) string {
	return classStudentsPrefix + classID + ":students"
}

// Helper to generate the per-class student sequence key
func getClassSeqKey(classID string) string {
	return classStudentsPrefix + classID + ":seq"
}

// Helper to generate student info key
func getStudentInfoKey(studentID string) string {
	return studentInfoPrefix + studentID
}

func getRunKey(runID string) string {
	return runPrefix + runID
}

// Ping checks the connection.
func (s *RedisService) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

// --- Class Operations ---

// AddClass adds a new class to Redis
func (s *RedisService) AddClass(ctx context.Context, clazz models.Clazz) error {
	if clazz.ID == "" || clazz.Name == "" {
		return errors.New("class ID and Name cannot be empty")
	}
	classKey := getClassInfoKey(clazz.ID)
	pipe := s.Client.Pipeline()

	// Add class ID to the global set of classes
	pipe.SAdd(ctx, classesKey, clazz.ID)
	// Store class details in a Hash
	pipe.HSet(ctx, classKey, map[string]interface{}{
		"id":   clazz.ID,
		"name": clazz.Name,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		s.Logger.Error("failed to add class", "classId", clazz.ID, "error", err)
		return fmt.Errorf("failed to add class to Redis: %w", err)
	}
	s.Logger.Info("added class", "classId", clazz.ID, "name", clazz.Name)
	return nil
}

// GetClassByID retrieves a class by its ID. A missing class is (nil, nil).
func (s *RedisService) GetClassByID(ctx context.Context, classID string) (*models.Clazz, error) {
	data, err := s.Client.HGetAll(ctx, getClassInfoKey(classID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get class from Redis: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	return &models.Clazz{
		ID:   data["id"],
		Name: data["name"],
	}, nil
}

// GetAllClasses retrieves all classes
func (s *RedisService) GetAllClasses(ctx context.Context) ([]models.Clazz, error) {
	classIDs, err := s.Client.SMembers(ctx, classesKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get class IDs from Redis: %w", err)
	}

	classes := make([]models.Clazz, 0, len(classIDs))
	for _, id := range classIDs {
		clazz, err := s.GetClassByID(ctx, id)
		if err != nil {
			// Log the error but continue trying to fetch others
			s.Logger.Warn("failed to fetch class details", "classId", id, "error", err)
			continue
		}
		if clazz != nil {
			classes = append(classes, *clazz)
		}
	}
	return classes, nil
}

// ClassExists checks if a class ID exists in the classes set
func (s *RedisService) ClassExists(ctx context.Context, classID string) (bool, error) {
	exists, err := s.Client.SIsMember(ctx, classesKey, classID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check class existence: %w", err)
	}
	return exists, nil
}

func (s *RedisService) ensureClass(ctx context.Context, classID, name string) error {
	exists, err := s.ClassExists(ctx, classID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	s.Logger.Warn("class does not exist, creating it", "classId", classID)
	if err := s.AddClass(ctx, models.Clazz{ID: classID, Name: name}); err != nil {
		return fmt.Errorf("class %s does not exist and auto-creation failed: %w", classID, err)
	}
	return nil
}

// --- Roster Operations ---

// AddStudent appends a roster entry to a class, creating the class if needed.
// The weight is stored as given; it is only converted when grouping.
func (s *RedisService) AddStudent(ctx context.Context, classID string, entry models.RosterEntry) error {
	if classID == "" {
		return errors.New("class ID cannot be empty")
	}
	if strings.TrimSpace(entry.Name) == "" {
		return ErrMissingName
	}
	if err := s.ensureClass(ctx, classID, "Class "+classID); err != nil {
		return err
	}
	return s.appendEntries(ctx, classID, []models.RosterEntry{entry})
}

// appendEntries reserves one sequence number per entry and writes them all in
// a single pipeline.
func (s *RedisService) appendEntries(ctx context.Context, classID string, entries []models.RosterEntry) error {
	if len(entries) == 0 {
		return nil
	}
	last, err := s.Client.IncrBy(ctx, getClassSeqKey(classID), int64(len(entries))).Result()
	if err != nil {
		return fmt.Errorf("failed to reserve student IDs for class %s: %w", classID, err)
	}
	first := last - int64(len(entries)) + 1

	pipe := s.Client.Pipeline()
	ids := make([]interface{}, len(entries))
	for i, e := range entries {
		studentID := classID + ":" + strconv.FormatInt(first+int64(i), 10)
		ids[i] = studentID
		pipe.HSet(ctx, getStudentInfoKey(studentID), map[string]interface{}{
			"id":      studentID,
			"classId": classID,
			"row":     e.Row,
			"name":    e.Name,
			"sex":     e.Sex,
			"weight":  e.Weight,
		})
	}
	pipe.RPush(ctx, getClassStudentsKey(classID), ids...)

	if _, err := pipe.Exec(ctx); err != nil {
		s.Logger.Error("failed to add students", "classId", classID, "count", len(entries), "error", err)
		return fmt.Errorf("failed to add students to Redis: %w", err)
	}
	return nil
}

// GetRoster returns the class roster in insertion order.
func (s *RedisService) GetRoster(ctx context.Context, classID string) ([]models.RosterEntry, error) {
	studentIDs, err := s.Client.LRange(ctx, getClassStudentsKey(classID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get student IDs from Redis for class %s: %w", classID, err)
	}

	pipe := s.Client.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, len(studentIDs))
	for i, id := range studentIDs {
		cmds[i] = pipe.HGetAll(ctx, getStudentInfoKey(id))
	}
	if len(cmds) > 0 {
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("failed to get students from Redis for class %s: %w", classID, err)
		}
	}

	entries := make([]models.RosterEntry, 0, len(studentIDs))
	for i, cmd := range cmds {
		data := cmd.Val()
		if len(data) == 0 {
			s.Logger.Warn("student listed in roster has no details", "classId", classID, "studentId", studentIDs[i])
			continue
		}
		row, _ := strconv.Atoi(data["row"])
		entries = append(entries, models.RosterEntry{
			Row:    row,
			Name:   data["name"],
			Sex:    data["sex"],
			Weight: data["weight"],
		})
	}
	return entries, nil
}

// ClearRoster removes every student of a class. The class itself stays.
func (s *RedisService) ClearRoster(ctx context.Context, classID string) error {
	studentsKey := getClassStudentsKey(classID)
	studentIDs, err := s.Client.LRange(ctx, studentsKey, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to get student IDs from Redis for class %s: %w", classID, err)
	}

	keys := make([]string, 0, len(studentIDs)+1)
	for _, id := range studentIDs {
		keys = append(keys, getStudentInfoKey(id))
	}
	keys = append(keys, studentsKey)

	if err := s.Client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear roster of class %s: %w", classID, err)
	}
	return nil
}

// --- Roster Import ---

// ImportRoster parses a CSV or Excel roster and stores it in the class,
// creating the class if needed. With replace set, the previous roster is
// removed first. The import is all or nothing: a line without a name rejects
// the whole file.
func (s *RedisService) ImportRoster(ctx context.Context, classID, filename string, file io.Reader, replace bool) (int, error) {
	if classID == "" {
		return 0, errors.New("class ID cannot be empty")
	}

	entries, err := roster.Parse(filename, file)
	if err != nil {
		return 0, err
	}

	var unnamed []string
	for _, e := range entries {
		if e.Name == "" {
			unnamed = append(unnamed, strconv.Itoa(e.Row))
		}
	}
	if len(unnamed) > 0 {
		return 0, fmt.Errorf("%w: rows %s", ErrMissingName, strings.Join(unnamed, ", "))
	}

	if err := s.ensureClass(ctx, classID, "Imported Class "+classID); err != nil {
		return 0, err
	}
	if replace {
		if err := s.ClearRoster(ctx, classID); err != nil {
			return 0, err
		}
	}
	if err := s.appendEntries(ctx, classID, entries); err != nil {
		return 0, err
	}

	s.Logger.Info("imported roster", "classId", classID, "file", filename, "count", len(entries), "replace", replace)
	return len(entries), nil
}

// --- Grouping Runs ---

// SaveRun stores a grouping run so it can be fetched and downloaded until ttl
// elapses.
func (s *RedisService) SaveRun(ctx context.Context, run *models.Run, ttl time.Duration) error {
	if run.ID == "" {
		return errors.New("run ID cannot be empty")
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", run.ID, err)
	}
	if err := s.Client.Set(ctx, getRunKey(run.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun returns a stored run, or (nil, nil) once it has expired.
func (s *RedisService) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	data, err := s.Client.Get(ctx, getRunKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}

	var run models.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", runID, err)
	}
	return &run, nil
}

// --- Seed Data ---

// SeedIfEmpty adds a demo class when the store holds no classes. It reports
// whether data was added.
func (s *RedisService) SeedIfEmpty(ctx context.Context) (bool, error) {
	count, err := s.Client.SCard(ctx, classesKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("failed to check for existing classes: %w", err)
	}
	if count > 0 {
		s.Logger.Info("existing classes found, skipping seed data", "count", count)
		return false, nil
	}
	return true, s.SeedData(ctx)
}

// SeedData adds the demo class and its roster.
func (s *RedisService) SeedData(ctx context.Context) error {
	s.Logger.Info("seeding demo data", "classId", demoClassID)

	if err := s.AddClass(ctx, models.Clazz{ID: demoClassID, Name: demoClassName}); err != nil {
		return err
	}
	demo := []models.RosterEntry{
		{Row: 2, Name: "Alice", Sex: "F", Weight: "38.5"},
		{Row: 3, Name: "Bruno", Sex: "M", Weight: "45"},
		{Row: 4, Name: "Chloé", Sex: "F", Weight: "41"},
		{Row: 5, Name: "David", Sex: "M", Weight: "52"},
		{Row: 6, Name: "Emma", Sex: "F", Weight: "47.5"},
		{Row: 7, Name: "Farid", Sex: "M", Weight: "39"},
		{Row: 8, Name: "Gaëlle", Sex: "F", Weight: "55"},
		{Row: 9, Name: "Hugo", Sex: "M", Weight: "61"},
	}
	if err := s.ClearRoster(ctx, demoClassID); err != nil {
		return err
	}
	return s.appendEntries(ctx, demoClassID, demo)
}

// --- Utility ---

// InitializeRedisClient creates a Redis client and pings it.
func InitializeRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}
