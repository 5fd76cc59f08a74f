package app

import (
	"gorm.io/gorm"

	chatrepo "github.com/docquery/docquery-backend/internal/data/repos/chat"
	documentrepo "github.com/docquery/docquery-backend/internal/data/repos/document"
	tenantrepo "github.com/docquery/docquery-backend/internal/data/repos/tenant"
	"github.com/docquery/docquery-backend/internal/platform/logger"
)

type Repos struct {
	Tenants   tenantrepo.Repo
	Documents documentrepo.Repo
	Sessions  chatrepo.SessionRepo
	Messages  chatrepo.MessageRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Tenants:   tenantrepo.NewRepo(db, log),
		Documents: documentrepo.NewRepo(db, log),
		Sessions:  chatrepo.NewSessionRepo(db, log),
		Messages:  chatrepo.NewMessageRepo(db, log),
	}
}
