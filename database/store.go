package database

import (
	"context"
	"errors"
	"strings"

	"nexus_go/models"
	"nexus_go/services"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the MySQL implementation of services.Store.
type GormStore struct {
	db   *gorm.DB
	inTx bool
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var _ services.Store = (*GormStore)(nil)

func (s *GormStore) Transaction(ctx context.Context, fn func(tx services.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, inTx: true})
	})
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// notFound maps gorm's missing-row error onto the service sentinel.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return services.ErrNotFound
	}
	return err
}

func like(term string) string {
	return "%" + strings.TrimSpace(term) + "%"
}

// Requirements

func (s *GormStore) FindRequirement(ctx context.Context, id uint) (*models.Requirement, error) {
	var r models.Requirement
	if err := s.conn(ctx).First(&r, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (s *GormStore) ListRequirements(ctx context.Context) ([]models.Requirement, error) {
	var reqs []models.Requirement
	err := s.conn(ctx).Order("id ASC").Find(&reqs).Error
	return reqs, err
}

func (s *GormStore) CreateRequirement(ctx context.Context, r *models.Requirement) error {
	return s.conn(ctx).Omit(clause.Associations).Create(r).Error
}

func (s *GormStore) SaveRequirement(ctx context.Context, r *models.Requirement) error {
	return s.conn(ctx).Omit(clause.Associations).Save(r).Error
}

func (s *GormStore) DeleteRequirement(ctx context.Context, id uint) error {
	return s.Transaction(ctx, func(tx services.Store) error {
		db := tx.(*GormStore).conn(ctx)
		if err := db.Where("requirement_id = ?", id).Delete(&models.Payment{}).Error; err != nil {
			return err
		}
		return db.Delete(&models.Requirement{}, id).Error
	})
}

func (s *GormStore) UpdateRequirementCounts(ctx context.Context, id uint, paid, unpaid int) error {
	return s.conn(ctx).Model(&models.Requirement{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{"paid": paid, "unpaid": unpaid}).Error
}

// Payments

func (s *GormStore) paymentQuery(ctx context.Context) *gorm.DB {
	return s.conn(ctx).Model(&models.Payment{}).Preload("User").Preload("Requirement")
}

func (s *GormStore) FindPayment(ctx context.Context, id uint) (*models.Payment, error) {
	var p models.Payment
	if err := s.paymentQuery(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *GormStore) FindPayments(ctx context.Context, ids []uint) ([]models.Payment, error) {
	var payments []models.Payment
	if len(ids) == 0 {
		return payments, nil
	}
	err := s.conn(ctx).Where("id IN ?", ids).Find(&payments).Error
	return payments, err
}

func (s *GormStore) ListPayments(ctx context.Context, filter services.PaymentFilter) ([]models.Payment, error) {
	q := s.paymentQuery(ctx).Select("payments.*")
	if filter.RequirementID != 0 {
		q = q.Where("payments.requirement_id = ?", filter.RequirementID)
	}
	if filter.Status != "" {
		q = q.Where("payments.status = ?", filter.Status)
	}
	if filter.ManualStudentID != "" {
		q = q.Where("payments.user_id IS NULL AND payments.student_id = ?", filter.ManualStudentID)
	}
	if strings.TrimSpace(filter.Search) != "" {
		term := like(filter.Search)
		q = q.Joins("LEFT JOIN users ON users.id = payments.user_id AND users.deleted_at IS NULL").
			Where("payments.first_name LIKE ? OR payments.last_name LIKE ? OR payments.student_id LIKE ? OR users.first_name LIKE ? OR users.last_name LIKE ? OR users.name LIKE ? OR users.student_id LIKE ?",
				term, term, term, term, term, term, term)
	}

	var payments []models.Payment
	err := q.Order("payments.created_at DESC").Order("payments.id DESC").Find(&payments).Error
	return payments, err
}

func (s *GormStore) ListRequirementPayments(ctx context.Context, requirementID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.conn(ctx).Where("requirement_id = ?", requirementID).Find(&payments).Error
	return payments, err
}

func (s *GormStore) ListPersonPayments(ctx context.Context, userID uint, studentID string) ([]models.Payment, error) {
	q := s.paymentQuery(ctx)
	if studentID != "" {
		q = q.Where("user_id = ? OR (user_id IS NULL AND student_id = ?)", userID, studentID)
	} else {
		q = q.Where("user_id = ?", userID)
	}
	var payments []models.Payment
	err := q.Order("created_at DESC").Find(&payments).Error
	return payments, err
}

func (s *GormStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	return s.conn(ctx).Omit(clause.Associations).Create(p).Error
}

func (s *GormStore) SavePayment(ctx context.Context, p *models.Payment) error {
	return s.conn(ctx).Omit(clause.Associations).Save(p).Error
}

func (s *GormStore) DeletePayments(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return s.conn(ctx).Where("id IN ?", ids).Delete(&models.Payment{}).Error
}

func (s *GormStore) PaymentStats(ctx context.Context) (services.PaymentStats, error) {
	var row struct {
		TotalPayments int64
		TotalAmount   decimal.NullDecimal
		PaidAmount    decimal.NullDecimal
		PaidCount     int64
		PendingCount  int64
		UnpaidCount   int64
	}
	err := s.conn(ctx).Model(&models.Payment{}).Select(`
		COUNT(*) AS total_payments,
		SUM(amount_paid) AS total_amount,
		SUM(CASE WHEN status = ? THEN amount_paid ELSE 0 END) AS paid_amount,
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS paid_count,
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending_count,
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS unpaid_count`,
		models.PaymentPaid, models.PaymentPaid, models.PaymentPending, models.PaymentUnpaid).
		Scan(&row).Error
	if err != nil {
		return services.PaymentStats{}, err
	}
	return services.PaymentStats{
		TotalPayments: row.TotalPayments,
		TotalAmount:   orZero(row.TotalAmount),
		PaidAmount:    orZero(row.PaidAmount),
		PaidCount:     row.PaidCount,
		PendingCount:  row.PendingCount,
		UnpaidCount:   row.UnpaidCount,
	}, nil
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

// Users

func (s *GormStore) FindUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *GormStore) FindUserByStudentID(ctx context.Context, studentID string) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).Where("student_id = ?", studentID).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *GormStore) FindUsers(ctx context.Context, ids []uint) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	err := s.conn(ctx).Where("id IN ?", ids).Order("id ASC").Find(&users).Error
	return users, err
}

func (s *GormStore) FindUsersByStudentIDs(ctx context.Context, studentIDs []string) ([]models.User, error) {
	var users []models.User
	if len(studentIDs) == 0 {
		return users, nil
	}
	err := s.conn(ctx).Where("student_id IN ?", studentIDs).Order("id ASC").Find(&users).Error
	return users, err
}

func (s *GormStore) userQuery(ctx context.Context, filter services.UserFilter) *gorm.DB {
	q := s.conn(ctx).Model(&models.User{})
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Program != "" && !strings.EqualFold(filter.Program, "All") {
		q = q.Where("program = ?", filter.Program)
	}
	if strings.TrimSpace(filter.Search) != "" {
		term := like(filter.Search)
		q = q.Where("name LIKE ? OR first_name LIKE ? OR last_name LIKE ? OR email LIKE ? OR student_id LIKE ?",
			term, term, term, term, term)
	}
	return q
}

func (s *GormStore) ListUsers(ctx context.Context, filter services.UserFilter) ([]models.User, error) {
	var users []models.User
	err := s.userQuery(ctx, filter).Order("id ASC").Find(&users).Error
	return users, err
}

func (s *GormStore) CountUsers(ctx context.Context, filter services.UserFilter) (int64, error) {
	var n int64
	err := s.userQuery(ctx, filter).Count(&n).Error
	return n, err
}

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) error {
	return s.conn(ctx).Create(u).Error
}

func (s *GormStore) SaveUser(ctx context.Context, u *models.User) error {
	return s.conn(ctx).Save(u).Error
}

// DeleteUser removes the account and its registrations. Payments keep their
// user_id and surface as orphaned rows in profiles.
func (s *GormStore) DeleteUser(ctx context.Context, id uint) error {
	return s.Transaction(ctx, func(tx services.Store) error {
		db := tx.(*GormStore).conn(ctx)
		if err := db.Unscoped().Where("user_id = ?", id).Delete(&models.Attendee{}).Error; err != nil {
			return err
		}
		return db.Unscoped().Delete(&models.User{}, id).Error
	})
}

// Events

func (s *GormStore) FindEvent(ctx context.Context, id uint) (*models.Event, error) {
	q := s.conn(ctx)
	if s.inTx {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var e models.Event
	if err := q.First(&e, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (s *GormStore) ListEvents(ctx context.Context, filter services.EventFilter) ([]models.Event, error) {
	q := s.conn(ctx)
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if strings.TrimSpace(filter.Search) != "" {
		term := like(filter.Search)
		q = q.Where("title LIKE ? OR description LIKE ? OR location LIKE ? OR category LIKE ?", term, term, term, term)
	}
	var events []models.Event
	err := q.Order("date ASC").Order("time ASC").Find(&events).Error
	return events, err
}

func (s *GormStore) CreateEvent(ctx context.Context, e *models.Event) error {
	return s.conn(ctx).Omit(clause.Associations).Create(e).Error
}

func (s *GormStore) SaveEvent(ctx context.Context, e *models.Event) error {
	return s.conn(ctx).Omit(clause.Associations).Save(e).Error
}

func (s *GormStore) DeleteEvent(ctx context.Context, id uint) error {
	return s.Transaction(ctx, func(tx services.Store) error {
		db := tx.(*GormStore).conn(ctx)
		if err := db.Unscoped().Where("event_id = ?", id).Delete(&models.Attendee{}).Error; err != nil {
			return err
		}
		return db.Delete(&models.Event{}, id).Error
	})
}

func (s *GormStore) CountActiveAttendees(ctx context.Context, eventID uint) (int, error) {
	var n int64
	err := s.conn(ctx).Model(&models.Attendee{}).
		Where("event_id = ? AND attendance_status <> ?", eventID, models.AttendanceCancelled).
		Count(&n).Error
	return int(n), err
}

func (s *GormStore) CountActiveAttendeesByEvent(ctx context.Context, eventIDs []uint) (map[uint]int, error) {
	out := make(map[uint]int, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		EventID uint
		Total   int
	}
	err := s.conn(ctx).Model(&models.Attendee{}).
		Select("event_id, COUNT(*) AS total").
		Where("event_id IN ? AND attendance_status <> ?", eventIDs, models.AttendanceCancelled).
		Group("event_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.EventID] = r.Total
	}
	return out, nil
}

func (s *GormStore) FindAttendee(ctx context.Context, id uint) (*models.Attendee, error) {
	var a models.Attendee
	if err := s.conn(ctx).First(&a, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (s *GormStore) FindAttendeeByUser(ctx context.Context, eventID, userID uint) (*models.Attendee, error) {
	var a models.Attendee
	if err := s.conn(ctx).Where("event_id = ? AND user_id = ?", eventID, userID).First(&a).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (s *GormStore) ListAttendees(ctx context.Context, eventID uint) ([]models.Attendee, error) {
	var attendees []models.Attendee
	err := s.conn(ctx).Preload("User").Where("event_id = ?", eventID).Order("registered_at ASC").Find(&attendees).Error
	return attendees, err
}

func (s *GormStore) CreateAttendee(ctx context.Context, a *models.Attendee) error {
	return s.conn(ctx).Omit(clause.Associations).Create(a).Error
}

func (s *GormStore) SaveAttendee(ctx context.Context, a *models.Attendee) error {
	return s.conn(ctx).Omit(clause.Associations).Save(a).Error
}

// DeleteAttendee is a hard delete so the (event, user) pair can register again.
func (s *GormStore) DeleteAttendee(ctx context.Context, id uint) error {
	return s.conn(ctx).Unscoped().Delete(&models.Attendee{}, id).Error
}

// Tickets

func (s *GormStore) FindTicket(ctx context.Context, id uint) (*models.SupportTicket, error) {
	var t models.SupportTicket
	if err := s.conn(ctx).Preload("User").First(&t, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *GormStore) FindTickets(ctx context.Context, ids []uint) ([]models.SupportTicket, error) {
	var tickets []models.SupportTicket
	if len(ids) == 0 {
		return tickets, nil
	}
	err := s.conn(ctx).Where("id IN ?", ids).Find(&tickets).Error
	return tickets, err
}

func (s *GormStore) ListTickets(ctx context.Context, filter services.TicketFilter) ([]models.SupportTicket, error) {
	q := s.conn(ctx).Preload("User")
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var tickets []models.SupportTicket
	err := q.Order("created_at DESC").Order("id DESC").Find(&tickets).Error
	return tickets, err
}

func (s *GormStore) CreateTicket(ctx context.Context, t *models.SupportTicket) error {
	return s.conn(ctx).Omit(clause.Associations).Create(t).Error
}

func (s *GormStore) SaveTicket(ctx context.Context, t *models.SupportTicket) error {
	return s.conn(ctx).Omit(clause.Associations).Save(t).Error
}

func (s *GormStore) DeleteTickets(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return s.conn(ctx).Unscoped().Where("id IN ?", ids).Delete(&models.SupportTicket{}).Error
}
