package records_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"farmops-backend/internal/apperr"
	"farmops-backend/internal/models"
	"farmops-backend/internal/records"
	"farmops-backend/internal/testutil"

	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	// fasthttp starts its date ticker at init; only goroutines started by the tests count
	goleak.VerifyTestMain(m,
		goleak.IgnoreCurrent(),
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
}

type SentinelSuite struct {
	suite.Suite
	db      *gorm.DB
	svc     *records.Service
	farm    models.Farm
	other   models.Farm
	owner   models.User
	manager models.User
	worker  models.User
	flock   models.Flock
	day     time.Time
	ctx     context.Context
}

func TestSentinelSuite(t *testing.T) {
	suite.Run(t, new(SentinelSuite))
}

func (s *SentinelSuite) SetupTest() {
	t := s.T()
	s.ctx = context.Background()
	s.db = testutil.NewDB(t)
	s.svc = records.NewService(s.db, nil)

	s.farm = testutil.CreateFarm(t, s.db, "Dubréka")
	s.other = testutil.CreateFarm(t, s.db, "Coyah")
	s.owner = testutil.CreateUser(t, s.db, &s.farm.ID, models.RoleFarmOwner, "owner@farm.test")
	s.manager = testutil.CreateUser(t, s.db, &s.farm.ID, models.RoleManager, "manager@farm.test")
	s.worker = testutil.CreateUser(t, s.db, &s.farm.ID, models.RoleWorker, "worker@farm.test")
	testutil.CreateUser(t, s.db, &s.other.ID, models.RoleManager, "manager@other.test")
	s.flock = testutil.CreateFlock(t, s.db, s.farm.ID, "Bande 1", 100)
	s.day = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
}

func (s *SentinelSuite) actor(u models.User) records.Actor {
	return records.Actor{UserID: u.ID, Role: u.Role, FarmID: u.FarmID}
}

func (s *SentinelSuite) ingest(u models.User, day time.Time, p records.Payload) (*records.IngestResult, error) {
	return s.svc.IngestDailyRecord(s.ctx, records.IngestInput{
		Actor:      s.actor(u),
		FlockID:    s.flock.ID,
		RecordDate: day,
		Payload:    p,
	})
}

func (s *SentinelSuite) liveBirds() int {
	var f models.Flock
	s.Require().NoError(s.db.First(&f, s.flock.ID).Error)
	return f.LiveBirdCount
}

func (s *SentinelSuite) count(model any) int64 {
	var n int64
	s.Require().NoError(s.db.Model(model).Count(&n).Error)
	return n
}

func (s *SentinelSuite) TestFirstRecordIsApprovedAndAppliesMortality() {
	res, err := s.ingest(s.worker, s.day, records.Payload{EggsCollected: 80, Mortality: 3, FeedKg: 12.5})
	s.Require().NoError(err)

	s.False(res.Duplicate)
	s.Empty(res.Message)
	s.Equal(models.ReviewApproved, res.Record.ReviewStatus)
	s.False(res.Record.IsDuplicate)
	s.Nil(res.Record.DuplicateOfID)
	s.Equal(97, s.liveBirds())
	s.Equal(int64(0), s.count(&models.Notification{}))

	var logs []models.AuditLog
	s.Require().NoError(s.db.Where("entity_type = ?", "daily_record").Find(&logs).Error)
	s.Require().Len(logs, 1)
	s.Equal(res.Record.ID, logs[0].EntityID)
}

func (s *SentinelSuite) TestSecondSubmissionIsParkedAndNotifiesReviewers() {
	first, err := s.ingest(s.worker, s.day, records.Payload{EggsCollected: 80, Mortality: 2})
	s.Require().NoError(err)

	// a later time on the same day hits the same key
	second, err := s.ingest(s.worker, s.day.Add(15*time.Hour), records.Payload{EggsCollected: 85, Mortality: 5})
	s.Require().NoError(err)

	s.True(second.Duplicate)
	s.NotEmpty(second.Message)
	s.Equal(2, second.Notified)
	s.Equal(models.ReviewPendingReview, second.Record.ReviewStatus)
	s.True(second.Record.IsDuplicate)
	s.Require().NotNil(second.Record.DuplicateOfID)
	s.Equal(first.Record.ID, *second.Record.DuplicateOfID)

	// mortality of the parked record is not applied
	s.Equal(98, s.liveBirds())

	var notes []models.Notification
	s.Require().NoError(s.db.Order("recipient_id").Find(&notes).Error)
	s.Require().Len(notes, 2)
	s.ElementsMatch([]uint{s.owner.ID, s.manager.ID}, []uint{notes[0].RecipientID, notes[1].RecipientID})
	for _, n := range notes {
		s.Equal(models.NotificationDuplicateRecord, n.Type)
		s.Equal(s.farm.ID, n.FarmID)
		s.False(n.IsRead)

		var meta map[string]any
		s.Require().NoError(json.Unmarshal([]byte(n.Metadata), &meta))
		s.EqualValues(second.Record.ID, meta["record_id"])
		s.EqualValues(first.Record.ID, meta["duplicate_of_id"])
		s.Equal("2026-03-01", meta["record_date"])
	}
}

func (s *SentinelSuite) TestThirdSubmissionPointsAtApprovedRecord() {
	first, err := s.ingest(s.worker, s.day, records.Payload{EggsCollected: 80})
	s.Require().NoError(err)
	_, err = s.ingest(s.worker, s.day, records.Payload{EggsCollected: 81})
	s.Require().NoError(err)

	third, err := s.ingest(s.worker, s.day, records.Payload{EggsCollected: 82})
	s.Require().NoError(err)
	s.True(third.Duplicate)
	s.Equal(first.Record.ID, *third.Record.DuplicateOfID)
	s.Equal(int64(4), s.count(&models.Notification{}))
}

func (s *SentinelSuite) TestOtherDayIsIndependent() {
	_, err := s.ingest(s.worker, s.day, records.Payload{EggsCollected: 80})
	s.Require().NoError(err)

	res, err := s.ingest(s.worker, s.day.AddDate(0, 0, 1), records.Payload{EggsCollected: 80})
	s.Require().NoError(err)
	s.False(res.Duplicate)
	s.Equal(models.ReviewApproved, res.Record.ReviewStatus)
}

func (s *SentinelSuite) TestMortalityFloorsAtZero() {
	res, err := s.ingest(s.worker, s.day, records.Payload{Mortality: 250})
	s.Require().NoError(err)
	s.Equal(models.ReviewApproved, res.Record.ReviewStatus)
	s.Equal(0, s.liveBirds())
}

func (s *SentinelSuite) TestApprovedRecordOfAnotherActorIsConflict() {
	_, err := s.ingest(s.worker, s.day, records.Payload{EggsCollected: 80})
	s.Require().NoError(err)

	// the manager's lookup finds nothing of their own, the index rejects it
	res, err := s.ingest(s.manager, s.day, records.Payload{EggsCollected: 90, Mortality: 4})
	s.Require().Error(err)
	s.Nil(res)
	s.True(errors.Is(err, apperr.ErrConflict))
	s.Contains(err.Error(), `duplicate record for flock "Bande 1" on 2026-03-01`)

	s.Equal(int64(1), s.count(&models.DailyRecord{}))
	s.Equal(100, s.liveBirds())
}

func (s *SentinelSuite) TestFlockOfAnotherFarmIsForbidden() {
	outsider := testutil.CreateUser(s.T(), s.db, &s.other.ID, models.RoleWorker, "worker@other.test")

	_, err := s.ingest(outsider, s.day, records.Payload{EggsCollected: 10})
	s.True(errors.Is(err, apperr.ErrForbidden))

	unbound := testutil.CreateUser(s.T(), s.db, nil, models.RoleWorker, "nobody@farm.test")
	_, err = s.ingest(unbound, s.day, records.Payload{EggsCollected: 10})
	s.True(errors.Is(err, apperr.ErrForbidden))

	s.Equal(int64(0), s.count(&models.DailyRecord{}))
}

func (s *SentinelSuite) TestAdminBypassesTenantCheck() {
	admin := testutil.CreateUser(s.T(), s.db, nil, models.RoleAdmin, "admin@farm.test")

	res, err := s.ingest(admin, s.day, records.Payload{EggsCollected: 70})
	s.Require().NoError(err)
	s.Equal(s.farm.ID, res.Record.FarmID)
}

func (s *SentinelSuite) TestUnknownFlockIsNotFound() {
	_, err := s.svc.IngestDailyRecord(s.ctx, records.IngestInput{
		Actor:      s.actor(s.worker),
		FlockID:    9999,
		RecordDate: s.day,
	})
	s.True(errors.Is(err, apperr.ErrNotFound))
}

func (s *SentinelSuite) TestInputValidation() {
	tests := []struct {
		name string
		in   records.IngestInput
	}{
		{"zero flock", records.IngestInput{Actor: s.actor(s.worker), RecordDate: s.day}},
		{"zero date", records.IngestInput{Actor: s.actor(s.worker), FlockID: s.flock.ID}},
		{"negative eggs", records.IngestInput{Actor: s.actor(s.worker), FlockID: s.flock.ID, RecordDate: s.day,
			Payload: records.Payload{EggsCollected: -1}}},
		{"negative mortality", records.IngestInput{Actor: s.actor(s.worker), FlockID: s.flock.ID, RecordDate: s.day,
			Payload: records.Payload{Mortality: -2}}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.svc.IngestDailyRecord(s.ctx, tt.in)
			s.True(errors.Is(err, apperr.ErrValidation), "got %v", err)
		})
	}
	s.Equal(int64(0), s.count(&models.DailyRecord{}))
}

func (s *SentinelSuite) TestNotificationFailureRollsBackRecord() {
	_, err := s.ingest(s.worker, s.day, records.Payload{EggsCollected: 80})
	s.Require().NoError(err)

	s.Require().NoError(s.db.Migrator().DropTable(&models.Notification{}))

	_, err = s.ingest(s.worker, s.day, records.Payload{EggsCollected: 81})
	s.Require().Error(err)
	s.Equal(apperr.Kind(""), apperr.KindOf(err))
	s.Equal(int64(1), s.count(&models.DailyRecord{}))
}

func TestDayTruncatesToUTCDate(t *testing.T) {
	loc := time.FixedZone("GMT+1", 3600)
	got := records.Day(time.Date(2026, 3, 1, 23, 30, 0, 0, loc))
	if !got.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected day %v", got)
	}
}
