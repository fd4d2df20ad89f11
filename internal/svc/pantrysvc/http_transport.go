package pantrysvc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mkrupp/pantry/internal/domain"
	context_ "github.com/mkrupp/pantry/internal/infra/context"
	"github.com/mkrupp/pantry/internal/infra/logging"
	http_ "github.com/mkrupp/pantry/internal/infra/transport/http"
	"github.com/mkrupp/pantry/internal/svc/authsvc/authclient"
)

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig

	// URLItemIDParam is the URL path parameter name for item IDs.
	URLItemIDParam string `env:"URL_ITEM_ID_PARAM" default:"item_id"`

	// URLQueryParam is the query string parameter holding a search term.
	URLQueryParam string `env:"URL_QUERY_PARAM" default:"q"`
}

// HTTPTransport handles HTTP requests for the inventory service.
// Every inventory route answers with the freshly synchronized view state.
type HTTPTransport struct {
	invSvc     InventoryService
	authClient authclient.AuthClient
	log        logging.Logger
	cfg        HTTPTransportConfig
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport instance with the given configuration.
func NewHTTPTransport(
	invSvc InventoryService,
	authClient authclient.AuthClient,
	cfg HTTPTransportConfig,
) *HTTPTransport {
	return &HTTPTransport{
		invSvc:     invSvc,
		authClient: authClient,
		log:        logging.GetLogger("svc.pantrysvc.http_transport"),
		cfg:        cfg,
	}
}

// ServeHTTP implements http.Handler and sets up routes for the inventory endpoints:
// - GET /inventory: List items, filtered by the optional query parameter
// - POST /inventory: Add an item
// - POST /inventory/{item-id}/increment: Add one to an item
// - POST /inventory/{item-id}/decrement: Remove one from an item
// - DELETE /inventory/{item-id}: Remove an item entirely
// - GET /profile, PUT /profile: Read and set the display name
// Routes are protected by authentication middleware.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	itemRoute := fmt.Sprintf("/inventory/{%s}", ht.cfg.URLItemIDParam)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /inventory", ht.HandleList)
	mux.HandleFunc("POST /inventory", ht.HandleAdd)
	mux.HandleFunc("POST "+itemRoute+"/increment", ht.HandleIncrement)
	mux.HandleFunc("POST "+itemRoute+"/decrement", ht.HandleDecrement)
	mux.HandleFunc("DELETE "+itemRoute, ht.HandleRemoveAll)
	mux.HandleFunc("GET /profile", ht.HandleGetProfile)
	mux.HandleFunc("PUT /profile", ht.HandleSetProfile)

	handler := http.Handler(mux)
	handler = http_.AuthorizingMiddleware(handler, ht.authClient, ht.log)

	handler.ServeHTTP(w, r)
}

// HandleList returns the view state of the caller.
func (ht *HTTPTransport) HandleList(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleList(w, r)
}

func (ht *HTTPTransport) handleList(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "inventory list failed", "error", err)
		} else {
			log.DebugContext(ctx, "inventory listed")
		}
	}(r.Context())

	identity, err := ht.identity(w, r)
	if err != nil {
		return err
	}

	view, err := ht.invSvc.Sync(r.Context(), identity)
	if err != nil {
		ht.writeError(w, err)

		return fmt.Errorf("sync: %w", err)
	}

	if query := r.URL.Query().Get(ht.cfg.URLQueryParam); query != "" {
		view = view.Search(query)
	}

	return ht.writeView(w, http.StatusOK, view)
}

// HandleAdd adds an item.
// Expects form parameters: name and an optional quantity (default 1).
// An empty name leaves the inventory unchanged.
func (ht *HTTPTransport) HandleAdd(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleAdd(w, r)
}

func (ht *HTTPTransport) handleAdd(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "item add failed", "error", err)
		} else {
			log.DebugContext(ctx, "item added")
		}
	}(r.Context())

	identity, err := ht.identity(w, r)
	if err != nil {
		return err
	}

	// Parse form
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return fmt.Errorf("parse form: %w", err)
	}

	name := strings.TrimSpace(r.FormValue("name"))

	quantity := 0
	if raw := strings.TrimSpace(r.FormValue("quantity")); raw != "" {
		quantity, err = strconv.Atoi(raw)
		if err != nil || quantity < 1 {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

			return fmt.Errorf("%w: %q", domain.ErrInvalidQuantity, raw)
		}
	}

	log = log.With(logging.Group("item", "name", name, "quantity", quantity))

	// Nothing to add; answer with the unchanged inventory.
	if name == "" {
		return ht.handleList(w, r)
	}

	view, err := ht.invSvc.AddItem(r.Context(), identity, domain.ViewState{}, name, quantity)
	if err != nil {
		ht.writeError(w, err)

		return fmt.Errorf("add item: %w", err)
	}

	return ht.writeView(w, http.StatusOK, view)
}

// HandleIncrement adds one to the quantity of an item.
func (ht *HTTPTransport) HandleIncrement(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleItem(w, r, "item increment", ht.invSvc.IncrementItem)
}

// HandleDecrement removes one from the quantity of an item, deleting it at zero.
func (ht *HTTPTransport) HandleDecrement(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleItem(w, r, "item decrement", ht.invSvc.DecrementItem)
}

// HandleRemoveAll deletes an item regardless of quantity.
func (ht *HTTPTransport) HandleRemoveAll(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleItem(w, r, "item remove", ht.invSvc.RemoveAll)
}

type itemOperation func(ctx context.Context, identity domain.Identity, id domain.ItemID) (domain.ViewState, error)

func (ht *HTTPTransport) handleItem(w http.ResponseWriter, r *http.Request, action string, op itemOperation) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, action+" failed", "error", err)
		} else {
			log.DebugContext(ctx, action+" done")
		}
	}(r.Context())

	identity, err := ht.identity(w, r)
	if err != nil {
		return err
	}

	itemID, err := domain.ParseItemID(r.PathValue(ht.cfg.URLItemIDParam))
	if err != nil {
		ht.writeError(w, err)

		return fmt.Errorf("parse item id: %w", err)
	}

	log = log.With(logging.Group("item", "id", itemID))

	view, err := op(r.Context(), identity, itemID)
	if err != nil {
		ht.writeError(w, err)

		return fmt.Errorf("%s: %w", action, err)
	}

	return ht.writeView(w, http.StatusOK, view)
}

// HandleGetProfile returns the stored profile of the caller.
func (ht *HTTPTransport) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleGetProfile(w, r)
}

func (ht *HTTPTransport) handleGetProfile(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "profile fetch failed", "error", err)
		} else {
			log.DebugContext(ctx, "profile fetched")
		}
	}(r.Context())

	identity, err := ht.identity(w, r)
	if err != nil {
		return err
	}

	profile, err := ht.invSvc.GetProfile(r.Context(), identity)
	if err != nil {
		ht.writeError(w, err)

		return fmt.Errorf("get profile: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, domain.NewProfileResponse(profile))
}

// HandleSetProfile stores the display name of the caller.
// Expects form parameter: display_name.
func (ht *HTTPTransport) HandleSetProfile(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleSetProfile(w, r)
}

func (ht *HTTPTransport) handleSetProfile(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "profile update failed", "error", err)
		} else {
			log.DebugContext(ctx, "profile updated")
		}
	}(r.Context())

	identity, err := ht.identity(w, r)
	if err != nil {
		return err
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return fmt.Errorf("parse form: %w", err)
	}

	profile, err := ht.invSvc.SetProfile(r.Context(), identity, r.FormValue("display_name"))
	if err != nil {
		ht.writeError(w, err)

		return fmt.Errorf("set profile: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, domain.NewProfileResponse(profile))
}

// identity returns the caller set by the authorizing middleware.
func (ht *HTTPTransport) identity(w http.ResponseWriter, r *http.Request) (domain.Identity, error) {
	identity, ok := context_.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)

		return domain.Identity{}, domain.ErrNotSignedIn
	}

	return identity, nil
}

func (ht *HTTPTransport) writeView(w http.ResponseWriter, status int, view domain.ViewState) error {
	if err := http_.WriteJSON(w, status, domain.NewViewStateResponse(view)); err != nil {
		return fmt.Errorf("write response: %w", err)
	}

	return nil
}

// writeError maps service errors to status codes. Items of other users are
// reported as not found.
func (ht *HTTPTransport) writeError(w http.ResponseWriter, err error) {
	var status int

	switch {
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrProfileNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidItemName),
		errors.Is(err, domain.ErrNoItemID),
		errors.Is(err, domain.ErrInvalidItemID),
		errors.Is(err, domain.ErrNoDisplayName):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrVersionConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrNotSignedIn):
		status = http.StatusUnauthorized
	default:
		status = http.StatusInternalServerError
	}

	http.Error(w, http.StatusText(status), status)
}
