package handlers

import "net/http"

type Routes struct {
	Analyzer  *AnalyzerHandler
	Archive   *ArchiveHandler
	Reports   *ReportHandler
	Domains   *DomainHandler
	Admin     *AdminHandler
	Metrics   http.Handler
	UploadDir string
}

func NewRouter(rt Routes) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/analyze", rt.Analyzer.Analyze)
	mux.HandleFunc("GET /api/health", rt.Analyzer.Health)
	mux.HandleFunc("GET /api/limits", rt.Analyzer.Limits)

	mux.HandleFunc("GET /api/archive", rt.Archive.List)
	mux.HandleFunc("GET /api/archive/stats", rt.Archive.Stats)
	mux.HandleFunc("GET /api/archive/export", rt.Archive.Export)
	mux.HandleFunc("GET /api/archive/trends", rt.Archive.Trends)
	mux.HandleFunc("GET /api/archive/search/suggestions", rt.Archive.Suggestions)
	mux.HandleFunc("GET /api/archive/{id}", rt.Archive.Get)
	mux.HandleFunc("PUT /api/archive/{id}", rt.Archive.Update)
	mux.HandleFunc("DELETE /api/archive/{id}", rt.Archive.Delete)

	mux.HandleFunc("GET /api/domain/{domain}", rt.Domains.GetDomain)
	mux.HandleFunc("GET /api/domains/top", rt.Domains.GetTopDomains)

	admin := rt.Admin
	if reports := rt.Reports; reports != nil {
		mux.HandleFunc("POST /api/report", reports.Submit)
		mux.HandleFunc("GET /api/report/{id}", reports.Get)
		mux.HandleFunc("GET /api/report/stats", admin.AuthMiddleware(reports.Stats))
		mux.HandleFunc("GET /api/reports", admin.AuthMiddleware(reports.List))
		mux.HandleFunc("PATCH /api/report/{id}", admin.AuthMiddleware(reports.UpdateStatus))
		mux.HandleFunc("POST /api/report/{id}/escalate", admin.AuthMiddleware(reports.Escalate))
		mux.HandleFunc("POST /api/report/{id}/assign", admin.AuthMiddleware(reports.Assign))
		mux.HandleFunc("DELETE /api/report/{id}", admin.AuthMiddleware(reports.Delete))
	}

	mux.HandleFunc("GET /api/admin/stats", admin.AuthMiddleware(admin.GetStats))
	mux.HandleFunc("GET /api/admin/logs", admin.StreamLogs)
	mux.HandleFunc("POST /api/admin/pause", admin.AuthMiddleware(admin.Pause))
	mux.HandleFunc("POST /api/admin/resume", admin.AuthMiddleware(admin.Resume))
	mux.HandleFunc("GET /api/admin/status", admin.AuthMiddleware(admin.GetStatus))

	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics)
	}
	if rt.UploadDir != "" {
		mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(rt.UploadDir))))
	}

	return withCORS(mux)
}
