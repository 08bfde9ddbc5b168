package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ldi/caretaker/internal/calendar"
	"github.com/ldi/caretaker/internal/db"
	"github.com/ldi/caretaker/internal/dispatch"
	"github.com/ldi/caretaker/internal/recurrence"
	"github.com/ldi/caretaker/pkg/models"
)

// fail maps domain errors onto HTTP statuses: validation and state errors
// are the client's fault, missing rows are 404, everything else is a 500.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrInvalidState):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// Task handlers

// handleCreateTask accepts either a JSON body or multipart/form-data with a
// "task" JSON field plus "attachments" file parts. Only attachment metadata
// is stored; file contents are not kept here.
func (s *Server) handleCreateTask(c *gin.Context) {
	var task models.Task

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		payload := c.PostForm("task")
		if err := json.Unmarshal([]byte(payload), &task); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "task field is not valid JSON"})
			return
		}
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		for _, fh := range form.File["attachments"] {
			task.Attachments = append(task.Attachments, models.Attachment{
				FileName:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				SizeBytes:   fh.Size,
			})
		}
	} else {
		if err := c.ShouldBindJSON(&task); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if err := s.db.CreateTask(c.Request.Context(), &task); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) handleListTasks(c *gin.Context) {
	var filter db.TaskFilter
	if v := c.Query("status"); v != "" {
		status := models.TaskStatus(v)
		filter.Status = &status
	}
	if v := c.Query("propertyId"); v != "" {
		filter.PropertyID = &v
	}
	if v := c.Query("tenantId"); v != "" {
		filter.TenantID = &v
	}

	tasks, err := s.db.ListTasks(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.db.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handlePatchTask(c *gin.Context) {
	var patch models.TaskPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, entry, err := s.db.PatchTask(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.notifyTaskChange(c.Request.Context(), task, entry)
	c.JSON(http.StatusOK, task)
}

// notifyTaskChange sends a task's configured notifications after a recorded
// mutation. A no-op patch notifies nobody. Delivery outcomes live on the
// communication records; a rejected dispatch must not fail the mutation
// that triggered it.
func (s *Server) notifyTaskChange(ctx context.Context, task *models.Task, entry *models.HistoryEntry) {
	if entry == nil || task.CommunicationMethod == models.CommunicationNone {
		return
	}
	if _, err := s.dispatcher.Dispatch(ctx, task, nil); err != nil {
		log.Printf("task %s notification rejected: %v", task.ID, err)
	}
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	if err := s.db.DeleteTask(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleTaskHistory(c *gin.Context) {
	entries, err := s.db.ListTaskHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Communication handlers

func (s *Server) handleListCommunications(c *gin.Context) {
	comms, err := s.db.ListTaskCommunications(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comms)
}

// handleSendCommunication dispatches a task's configured notifications, or
// an ad hoc message when the request carries one.
func (s *Server) handleSendCommunication(c *gin.Context) {
	task, err := s.db.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	// Any non-empty body is an ad hoc request; a partial override is
	// rejected rather than falling back to the task's stored settings.
	var override *dispatch.Override
	if c.Request.ContentLength > 0 {
		var o dispatch.Override
		if err := c.ShouldBindJSON(&o); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		override = &o
	}

	records, err := s.dispatcher.Dispatch(c.Request.Context(), task, override)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, records)
}

// Expense handlers

func (s *Server) handleCreateExpense(c *gin.Context) {
	var expense models.Expense
	if err := c.ShouldBindJSON(&expense); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.db.CreateExpense(c.Request.Context(), &expense); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, expense)
}

func (s *Server) handleListExpenses(c *gin.Context) {
	var propertyID *string
	if v := c.Query("propertyId"); v != "" {
		propertyID = &v
	}
	expenses, err := s.db.ListExpenses(c.Request.Context(), propertyID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, expenses)
}

func (s *Server) handlePatchExpense(c *gin.Context) {
	var patch models.ExpensePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	expense, err := s.db.PatchExpense(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, expense)
}

// handleRecurringTotal reports the monthly-equivalent total of recurring
// expenses, optionally scoped to one property.
func (s *Server) handleRecurringTotal(c *gin.Context) {
	var propertyID *string
	if v := c.Query("propertyId"); v != "" {
		propertyID = &v
	}
	expenses, err := s.db.ListExpenses(c.Request.Context(), propertyID)
	if err != nil {
		s.fail(c, err)
		return
	}
	total, err := recurrence.MonthlyRecurringTotal(expenses)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"monthlyTotal": models.FormatAmount(total)})
}

// Calendar handlers

func (s *Server) handleCalendarMonth(c *gin.Context) {
	now := time.Now()
	year, err := strconv.Atoi(c.DefaultQuery("year", strconv.Itoa(now.Year())))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year must be an integer"})
		return
	}
	monthNum, err := strconv.Atoi(c.DefaultQuery("month", strconv.Itoa(int(now.Month()))))
	if err != nil || monthNum < 1 || monthNum > 12 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "month must be 1-12"})
		return
	}

	tasks, err := s.db.ListTasks(c.Request.Context(), db.TaskFilter{})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, calendar.BuildMonthGrid(year, time.Month(monthNum), tasks))
}

func (s *Server) handleCalendarWeek(c *gin.Context) {
	s.handleCalendarRef(c, calendar.BuildWeekGrid)
}

func (s *Server) handleCalendarDay(c *gin.Context) {
	s.handleCalendarRef(c, calendar.BuildDayGrid)
}

func (s *Server) handleCalendarRef(c *gin.Context, build func(time.Time, []*models.Task) []calendar.Cell) {
	ref := time.Now().UTC()
	if v := c.Query("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		ref = parsed
	}

	tasks, err := s.db.ListTasks(c.Request.Context(), db.TaskFilter{})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, build(ref, tasks))
}

// Collaborator handlers (read-only projections)

func (s *Server) handleListProperties(c *gin.Context) {
	properties, err := s.db.ListProperties(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, properties)
}

func (s *Server) handleListUnits(c *gin.Context) {
	units, err := s.db.ListUnits(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, units)
}

func (s *Server) handleListTenants(c *gin.Context) {
	tenants, err := s.db.ListTenants(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tenants)
}

func (s *Server) handleListVendors(c *gin.Context) {
	vendors, err := s.db.ListVendors(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, vendors)
}
