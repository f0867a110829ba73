package repos

import (
	"github.com/yungbote/concierge-backend/internal/data/repos/chat"
	"github.com/yungbote/concierge-backend/internal/data/repos/concierge"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type ThreadRepo = chat.ThreadRepo
type MessageRepo = chat.MessageRepo

type ReservationRepo = concierge.ReservationRepo
type ServiceRequestRepo = concierge.ServiceRequestRepo

func NewThreadRepo(db *gorm.DB, baseLog *logger.Logger) ThreadRepo {
	return chat.NewThreadRepo(db, baseLog)
}
func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return chat.NewMessageRepo(db, baseLog)
}

func NewReservationRepo(db *gorm.DB, baseLog *logger.Logger) ReservationRepo {
	return concierge.NewReservationRepo(db, baseLog)
}
func NewServiceRequestRepo(db *gorm.DB, baseLog *logger.Logger) ServiceRequestRepo {
	return concierge.NewServiceRequestRepo(db, baseLog)
}
