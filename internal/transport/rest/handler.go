package rest

import (
	"context"
	"net/http"
	"time"

	"school-admin/internal/browser"
	"school-admin/internal/domain"
	"school-admin/internal/repository"
	"school-admin/internal/service"
	"school-admin/internal/transport/auth"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type WorkspaceService interface {
	Get(ctx context.Context, userID int64) *service.Workspace
	ChangeLeadStatus(ctx context.Context, userID int64, uuid string, status domain.LeadStatus) error
	SubmitReceipt(ctx context.Context, userID int64) (browser.SubmittedReceipt, error)
	ExportLeads(ctx context.Context, userID int64) (string, error)
	ExportLedger(ctx context.Context, userID int64) (string, error)
}

type ExportLister interface {
	GetExports(ctx context.Context, userID int64) ([]service.ExportView, error)
	GetExport(ctx context.Context, exportID string, userID int64) (service.ExportView, error)
}

type AuditLister interface {
	List(ctx context.Context, f repository.AuditFilter) ([]domain.AuditEntry, error)
}

type SocketServer interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request, userID int64)
}

// FileResolver maps a stored export name to a path on disk.
type FileResolver interface {
	Path(stored string) (string, error)
}

type Handler struct {
	workspaces WorkspaceService
	exports    ExportLister
	audit      AuditLister
	sockets    SocketServer
	files      FileResolver
}

// Deps collects what the admin API is served from. Audit, Sockets and
// Files are optional; their routes are left out when nil.
type Deps struct {
	Workspaces WorkspaceService
	Exports    ExportLister
	Audit      AuditLister
	Sockets    SocketServer
	Files      FileResolver
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		workspaces: d.Workspaces,
		exports:    d.Exports,
		audit:      d.Audit,
		sockets:    d.Sockets,
		files:      d.Files,
	}
}

func (h *Handler) InitRouterWithAuth(authMiddleware func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	if h.files != nil {
		r.Get("/files/{file}", h.serveFile)
	}

	r.Group(func(r chi.Router) {
		if authMiddleware != nil {
			r.Use(authMiddleware)
		}

		if h.sockets != nil {
			r.Get("/ws", h.serveWebSocket)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Route("/leads", func(r chi.Router) {
				r.Get("/", h.leadView)
				r.Post("/tab", h.selectTab)
				r.Put("/filters", h.leadFilter)
				r.Post("/sort", h.leadSort)
				r.Patch("/{uuid}/status", h.changeLeadStatus)
				r.Post("/export", h.exportLeads)
			})

			r.Route("/fees", func(r chi.Router) {
				r.Get("/", h.ledgerView)
				r.Post("/class", h.loadClass)
				r.Put("/filters", h.ledgerFilter)
				r.Post("/sort", h.ledgerSort)
				r.Get("/csv", h.downloadCSV)
				r.Post("/export", h.exportLedger)

				r.Get("/receipt", h.receiptForm)
				r.Delete("/receipt", h.closeReceipt)
				r.Put("/receipt", h.editReceipt)
				r.Post("/receipt/open", h.openReceipt)
				r.Post("/receipt/submit", h.submitReceipt)
			})

			r.Get("/export", h.listExports)
			r.Get("/export/{export_id}", h.getExport)

			if h.audit != nil {
				r.Get("/audit", h.listAudit)
			}
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	Success(w, "ok", nil)
}

// userID reads the authenticated admin and answers 401 when there is none.
func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "unauthorized")
		return 0, false
	}
	return id, true
}

func (h *Handler) workspace(w http.ResponseWriter, r *http.Request) (*service.Workspace, bool) {
	id, ok := userID(w, r)
	if !ok {
		return nil, false
	}
	return h.workspaces.Get(r.Context(), id), true
}

func (h *Handler) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	h.sockets.HandleWebSocket(w, r, id)
}
