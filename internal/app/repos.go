package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/concierge-backend/internal/data/repos"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

type Repos struct {
	Thread         repos.ThreadRepo
	Message        repos.MessageRepo
	Reservation    repos.ReservationRepo
	ServiceRequest repos.ServiceRequestRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Thread:         repos.NewThreadRepo(db, log),
		Message:        repos.NewMessageRepo(db, log),
		Reservation:    repos.NewReservationRepo(db, log),
		ServiceRequest: repos.NewServiceRequestRepo(db, log),
	}
}
