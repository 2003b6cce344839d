package app

import (
	"gorm.io/gorm"

	"github.com/ellyeware/idiombot/internal/data/repos"
	"github.com/ellyeware/idiombot/internal/platform/logger"
)

type Repos struct {
	Idioms     repos.IdiomRepo
	Catalogues repos.CatalogueRepo
	Greylist   repos.GreylistRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Idioms:     repos.NewIdiomRepo(db, log),
		Catalogues: repos.NewCatalogueRepo(db, log),
		Greylist:   repos.NewGreylistRepo(db, log),
	}
}
