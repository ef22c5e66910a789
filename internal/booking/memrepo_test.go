package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepo is an in-memory Repository for service tests. Its conditional
// insert enforces the same live-key uniqueness the partial index does, so
// the race-safety tests exercise the real contract.
type memRepo struct {
	mu sync.Mutex

	doctors      map[uuid.UUID]*Doctor
	patients     map[uuid.UUID]*Patient
	slots        map[string]*Slot
	appointments map[uuid.UUID]*Appointment

	lastListLimit int
}

func newMemRepo() *memRepo {
	return &memRepo{
		doctors:      make(map[uuid.UUID]*Doctor),
		patients:     make(map[uuid.UUID]*Patient),
		slots:        make(map[string]*Slot),
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

func (m *memRepo) addDoctor(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doctors[id] = &Doctor{ID: id, Name: "Dr. Test"}
}

func (m *memRepo) addPatient(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[id] = &Patient{ID: id, Name: "Test Patient"}
}

func (m *memRepo) addSlot(s Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := s
	m.slots[SlotKey(s.DoctorID, s.Date, s.Time)] = &copied
}

func (m *memRepo) addAppointment(a Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := a
	m.appointments[a.ID] = &copied
}

func (m *memRepo) slotAt(doctorID uuid.UUID, date, timeLabel string) *Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[SlotKey(doctorID, date, timeLabel)]
	if !ok {
		return nil
	}
	copied := *s
	return &copied
}

func (m *memRepo) liveCount(doctorID uuid.UUID, date, timeLabel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && a.Date == date && a.Time == timeLabel && a.Status.IsLive() {
			count++
		}
	}
	return count
}

func (m *memRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	copied := *d
	return &copied, nil
}

func (m *memRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *memRepo) ListSlots(_ context.Context, doctorID uuid.UUID, date string) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Slot
	for _, s := range m.slots {
		if s.DoctorID == doctorID && s.Date == date {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Time < result[j].Time })
	return result, nil
}

func (m *memRepo) GetSlotByID(_ context.Context, doctorID, slotID uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.ID == slotID && s.DoctorID == doctorID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, ErrSlotNotFound
}

func (m *memRepo) UpsertSlots(_ context.Context, slots []Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range slots {
		key := SlotKey(s.DoctorID, s.Date, s.Time)
		if existing, ok := m.slots[key]; ok {
			existing.Category = s.Category
			continue
		}
		copied := s
		m.slots[key] = &copied
	}
	return nil
}

func (m *memRepo) SetSlotStatus(_ context.Context, doctorID uuid.UUID, date, timeLabel string, status SlotStatus, appointmentID *uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := SlotKey(doctorID, date, timeLabel)
	s, ok := m.slots[key]
	if !ok {
		category, err := CategorizeTime(timeLabel)
		if err != nil {
			return err
		}
		s = &Slot{ID: uuid.New(), DoctorID: doctorID, Date: date, Time: timeLabel, Category: category}
		m.slots[key] = s
	}
	s.Status = status
	s.AppointmentID = appointmentID
	return nil
}

func (m *memRepo) DeleteSlot(_ context.Context, doctorID, slotID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, s := range m.slots {
		if s.ID == slotID && s.DoctorID == doctorID {
			delete(m.slots, key)
			return nil
		}
	}
	return ErrSlotNotFound
}

func (m *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *memRepo) ListLiveAppointmentsForDate(_ context.Context, doctorID uuid.UUID, date string) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Appointment
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && a.Date == date && a.Status.IsLive() {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *memRepo) ListLiveAppointmentsForSlot(_ context.Context, doctorID uuid.UUID, date, timeLabel string) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Appointment
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && a.Date == date && a.Time == timeLabel && a.Status.IsLive() {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *memRepo) ListAppointmentsByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastListLimit = limit
	var result []Appointment
	for _, a := range m.appointments {
		if a.DoctorID == doctorID {
			result = append(result, *a)
		}
	}
	return paginate(result, limit, offset), nil
}

func (m *memRepo) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastListLimit = limit
	var result []Appointment
	for _, a := range m.appointments {
		if a.PatientID == patientID {
			result = append(result, *a)
		}
	}
	return paginate(result, limit, offset), nil
}

func (m *memRepo) CreatePendingAppointment(_ context.Context, appt *Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.appointments {
		if a.DoctorID == appt.DoctorID && a.Date == appt.Date && a.Time == appt.Time && a.Status.IsLive() {
			return nil, ErrSlotTaken
		}
	}

	copied := *appt
	copied.Status = StatusPending
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = copied.CreatedAt
	m.appointments[copied.ID] = &copied

	result := copied
	return &result, nil
}

func (m *memRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}

	a.Status = to
	a.UpdatedAt = time.Now()
	copied := *a
	return &copied, nil
}

func (m *memRepo) DeleteAppointment(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appointments[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(m.appointments, id)
	return nil
}

func paginate(appts []Appointment, limit, offset int) []Appointment {
	sort.Slice(appts, func(i, j int) bool { return appts[i].CreatedAt.After(appts[j].CreatedAt) })
	if offset >= len(appts) {
		return nil
	}
	appts = appts[offset:]
	if len(appts) > limit {
		appts = appts[:limit]
	}
	return appts
}
