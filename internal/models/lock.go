package models

import "time"

// ImageLock представляет эксклюзивную блокировку редактирования
// одного изображения в рамках проекта. Инвариант: ExpiresAt всегда равен
// HeartbeatAt + длительность аренды; просроченная блокировка считается
// отсутствующей и удаляется лениво при следующем обращении к ключу.
type ImageLock struct {
	ProjectID    int64     `db:"project_id" json:"project_id"`
	ImageID      int64     `db:"image_id" json:"image_id"`
	LockedBy     int64     `db:"locked_by" json:"locked_by"`
	LockedByName string    `db:"locked_by_name" json:"locked_by_name,omitempty"`
	AcquiredAt   time.Time `db:"acquired_at" json:"acquired_at"`
	HeartbeatAt  time.Time `db:"heartbeat_at" json:"heartbeat_at"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
}

// Expired сообщает, истекла ли аренда блокировки к моменту now.
func (l *ImageLock) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

// LockStatus - закрытый набор статусов операций с блокировками.
type LockStatus string

// Статусы операций с блокировками.
const (
	LockStatusAcquired      LockStatus = "acquired"
	LockStatusRefreshed     LockStatus = "refreshed"
	LockStatusAlreadyLocked LockStatus = "already_locked"
	LockStatusNotLocked     LockStatus = "not_locked"
	LockStatusNotOwner      LockStatus = "not_owner"
	LockStatusUpdated       LockStatus = "updated"
	LockStatusReleased      LockStatus = "released"
)

// LockResult - результат операции с блокировкой: статус и, если применимо,
// сведения о блокировке (держатель, отметки времени).
type LockResult struct {
	Status LockStatus `json:"status"`
	Lock   *ImageLock `json:"lock,omitempty"`
}
