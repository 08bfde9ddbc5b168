package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ldi/caretaker/pkg/models"
)

func (s *Server) handleCreateBillingRecord(c *gin.Context) {
	var record models.BillingRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.db.CreateBillingRecord(c.Request.Context(), &record); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (s *Server) handleTenantBillingRecords(c *gin.Context) {
	records, err := s.db.ListTenantBillingRecords(c.Request.Context(), c.Param("tenantId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) handleUpdateBillingRecord(c *gin.Context) {
	var body struct {
		Amount *string               `json:"amount"`
		Status *models.BillingStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := s.db.UpdateBillingRecord(c.Request.Context(), c.Param("id"), body.Amount, body.Status)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// handleGenerateMonthly bills every occupied unit for the requested period,
// defaulting to the current month. Units already billed are skipped.
func (s *Server) handleGenerateMonthly(c *gin.Context) {
	var body struct {
		BillingPeriod string `json:"billingPeriod"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if body.BillingPeriod == "" {
		body.BillingPeriod = time.Now().Format("2006-01")
	}

	generated, err := s.billing.GenerateMonthly(c.Request.Context(), body.BillingPeriod)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"generated": generated})
}

func (s *Server) handleRunAutomatic(c *gin.Context) {
	generated, updated, err := s.billing.RunAutomatic(c.Request.Context(), time.Now())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"generated": generated, "updated": updated})
}

func (s *Server) handleOutstandingBalance(c *gin.Context) {
	tenantID := c.Param("tenantId")
	balance, err := s.billing.OutstandingBalance(c.Request.Context(), tenantID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tenantId": tenantID,
		"balance":  models.FormatAmount(balance),
	})
}

func (s *Server) handleCreateRentPayment(c *gin.Context) {
	var payment models.RentPayment
	if err := c.ShouldBindJSON(&payment); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.db.CreateRentPayment(c.Request.Context(), &payment); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func (s *Server) handleListRentPayments(c *gin.Context) {
	var tenantID *string
	if v := c.Query("tenantId"); v != "" {
		tenantID = &v
	}
	payments, err := s.db.ListRentPayments(c.Request.Context(), tenantID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

func (s *Server) handleUpdateRentPayment(c *gin.Context) {
	var body struct {
		Amount *string `json:"amount"`
		Notes  *string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payment, err := s.db.UpdateRentPayment(c.Request.Context(), c.Param("id"), body.Amount, body.Notes)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}
