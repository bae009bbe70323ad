package webservices

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/tablescan/tablescan"
	"github.com/jamesrr39/tablescan/tablescandal"
	"github.com/jamesrr39/tablescan/tablescandal/queryengine"
)

func NewInfoService(logger *logpkg.Logger, tableSet *tablescandal.TableSet) *InfoService {
	ws := &InfoService{logger, tableSet, chi.NewRouter()}
	ws.Get("/", ws.handleGet)

	return ws
}

type InfoService struct {
	logger   *logpkg.Logger
	tableSet *tablescandal.TableSet
	chi.Router
}

type infoType struct {
	Strategies []queryengine.Strategy   `json:"strategies"`
	StoreTypes []tablescandal.StoreType `json:"storeTypes"`
	Tables     []*tablescan.TableInfo   `json:"tables"`
}

func (ws *InfoService) handleGet(w http.ResponseWriter, r *http.Request) {
	infos := []*tablescan.TableInfo{}

	// names are sorted, so the response is deterministic
	for _, name := range ws.tableSet.Names() {
		info, err := ws.tableInfo(name)
		if err != nil {
			errorsx.HTTPError(w, ws.logger, err, statusCodeForErr(err))
			return
		}

		infos = append(infos, info)
	}

	render.JSON(w, r, infoType{
		Strategies: queryengine.AllStrategies,
		StoreTypes: tablescandal.RegisteredStoreTypes(),
		Tables:     infos,
	})
}

func (ws *InfoService) tableInfo(name string) (*tablescan.TableInfo, errorsx.Error) {
	handle, err := ws.tableSet.Open(ws.logger, name)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	info, err := handle.Info()
	if err != nil {
		return nil, err
	}

	// the name the table is served under
	info.Name = name
	return info, nil
}
