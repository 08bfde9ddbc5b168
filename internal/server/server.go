// Package server exposes the task, expense, calendar, and billing core over
// a JSON REST API.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ldi/caretaker/internal/billing"
	"github.com/ldi/caretaker/internal/db"
	"github.com/ldi/caretaker/internal/dispatch"
)

type Server struct {
	db         *db.DB
	dispatcher *dispatch.Dispatcher
	billing    *billing.Engine
	router     *gin.Engine
	server     *http.Server
}

func NewServer(database *db.DB, dispatcher *dispatch.Dispatcher, engine *billing.Engine) *Server {
	router := gin.Default()

	s := &Server{
		db:         database,
		dispatcher: dispatcher,
		billing:    engine,
		router:     router,
	}

	api := router.Group("/api")
	{
		api.POST("/tasks", s.handleCreateTask)
		api.GET("/tasks", s.handleListTasks)
		api.GET("/tasks/:id", s.handleGetTask)
		api.PATCH("/tasks/:id", s.handlePatchTask)
		api.DELETE("/tasks/:id", s.handleDeleteTask)
		api.GET("/tasks/:id/history", s.handleTaskHistory)
		api.GET("/tasks/:id/communications", s.handleListCommunications)
		api.POST("/tasks/:id/communications", s.handleSendCommunication)

		api.POST("/expenses", s.handleCreateExpense)
		api.GET("/expenses", s.handleListExpenses)
		api.GET("/expenses/recurring-total", s.handleRecurringTotal)
		api.PATCH("/expenses/:id", s.handlePatchExpense)

		api.GET("/calendar/month", s.handleCalendarMonth)
		api.GET("/calendar/week", s.handleCalendarWeek)
		api.GET("/calendar/day", s.handleCalendarDay)

		api.GET("/properties", s.handleListProperties)
		api.GET("/units", s.handleListUnits)
		api.GET("/tenants", s.handleListTenants)
		api.GET("/vendors", s.handleListVendors)

		api.POST("/billing-records", s.handleCreateBillingRecord)
		api.GET("/billing-records/:tenantId", s.handleTenantBillingRecords)
		api.PUT("/billing-records/:id", s.handleUpdateBillingRecord)
		api.POST("/billing-records/generate-monthly", s.handleGenerateMonthly)
		api.POST("/billing-records/run-automatic", s.handleRunAutomatic)
		api.GET("/outstanding-balance/:tenantId", s.handleOutstandingBalance)

		api.POST("/rent-payments", s.handleCreateRentPayment)
		api.GET("/rent-payments", s.handleListRentPayments)
		api.PUT("/rent-payments/:id", s.handleUpdateRentPayment)
	}

	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
