package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ldi/caretaker/internal/billing"
	"github.com/ldi/caretaker/internal/db"
	"github.com/ldi/caretaker/internal/dispatch"
	"github.com/ldi/caretaker/internal/recurrence"
	"github.com/ldi/caretaker/pkg/models"
)

// NewServer creates a new MCP server.
func NewServer(database *db.DB, dispatcher *dispatch.Dispatcher, engine *billing.Engine) *server.MCPServer {
	s := server.NewMCPServer("Caretaker", "0.1.0")

	// Task Management
	s.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Propose a new task. Changes are staged and must be committed to take effect."),
		mcp.WithString("title", mcp.Description("Task title"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Task description")),
		mcp.WithString("category", mcp.Description("Task category (defaults to 'general')")),
		mcp.WithString("priority", mcp.Description("Priority (low|medium|high|urgent, defaults to medium)")),
		mcp.WithString("due_date", mcp.Description("Due date (YYYY-MM-DD)")),
		mcp.WithString("assigned_to", mcp.Description("Assignee name")),
		mcp.WithString("property_id", mcp.Description("Related property ID")),
		mcp.WithString("tenant_id", mcp.Description("Related tenant ID")),
		mcp.WithBoolean("is_recurring", mcp.Description("Whether the task recurs")),
		mcp.WithString("recurrence_period", mcp.Description("Recurrence period (weekly|monthly|quarterly|yearly, required when recurring)")),
		mcp.WithString("communication_method", mcp.Description("Notification method (none|email|sms|both)")),
		mcp.WithString("recipient_email", mcp.Description("Notification email address")),
		mcp.WithString("recipient_phone", mcp.Description("Notification phone number")),
		mcp.WithString("session_id", mcp.Description("Session ID for staging changes (defaults to 'default').")),
	), createTaskHandler(database))

	s.AddTool(mcp.NewTool("update_task",
		mcp.WithDescription("Update an existing task's fields. Every change is recorded in the task's history."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("category", mcp.Description("New category")),
		mcp.WithString("priority", mcp.Description("New priority")),
		mcp.WithString("due_date", mcp.Description("New due date (YYYY-MM-DD)")),
		mcp.WithString("assigned_to", mcp.Description("New assignee")),
	), updateTaskHandler(database, dispatcher))

	s.AddTool(mcp.NewTool("update_task_status",
		mcp.WithDescription("Update task status (pending|in_progress|completed|cancelled). Completed and cancelled tasks may be reopened."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("status", mcp.Description("New status"), mcp.Required()),
	), updateTaskStatusHandler(database, dispatcher))

	s.AddTool(mcp.NewTool("get_task",
		mcp.WithDescription("Get a single task by ID."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
	), getTaskHandler(database))

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks with optional filters."),
		mcp.WithString("status", mcp.Description("Filter by status")),
		mcp.WithString("property_id", mcp.Description("Filter by property")),
		mcp.WithString("tenant_id", mcp.Description("Filter by tenant")),
	), listTasksHandler(database))

	s.AddTool(mcp.NewTool("task_history",
		mcp.WithDescription("Get a task's change history, newest first."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
	), taskHistoryHandler(database))

	s.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task (cascades to history, communications, and attachments)."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
	), deleteTaskHandler(database))

	// Communications
	s.AddTool(mcp.NewTool("send_communication",
		mcp.WithDescription("Send a task's configured notifications, or an ad hoc message when method/recipient/message are given."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("method", mcp.Description("Ad hoc channel (email|sms)")),
		mcp.WithString("recipient", mcp.Description("Ad hoc recipient")),
		mcp.WithString("subject", mcp.Description("Ad hoc subject (email only)")),
		mcp.WithString("message", mcp.Description("Ad hoc message body")),
	), sendCommunicationHandler(database, dispatcher))

	// Expenses
	s.AddTool(mcp.NewTool("record_expense",
		mcp.WithDescription("Propose a new expense. Changes are staged and must be committed to take effect."),
		mcp.WithString("property_id", mcp.Description("Property ID"), mcp.Required()),
		mcp.WithString("category", mcp.Description("Expense category"), mcp.Required()),
		mcp.WithString("amount", mcp.Description("Amount as a decimal string"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Expense description")),
		mcp.WithString("date", mcp.Description("Expense date (YYYY-MM-DD, defaults to today)")),
		mcp.WithBoolean("is_recurring", mcp.Description("Whether the expense recurs")),
		mcp.WithString("recurrence_period", mcp.Description("Recurrence period (monthly|quarterly|yearly)")),
		mcp.WithString("vendor_name", mcp.Description("Vendor name")),
		mcp.WithString("notes", mcp.Description("Notes")),
		mcp.WithString("session_id", mcp.Description("Session ID for staging changes (defaults to 'default').")),
	), recordExpenseHandler(database))

	s.AddTool(mcp.NewTool("monthly_recurring_total",
		mcp.WithDescription("Get the monthly-equivalent total of recurring expenses."),
		mcp.WithString("property_id", mcp.Description("Limit to one property")),
	), monthlyRecurringTotalHandler(database))

	// Billing
	s.AddTool(mcp.NewTool("outstanding_balance",
		mcp.WithDescription("Get a tenant's outstanding balance: unpaid charges minus recorded payments."),
		mcp.WithString("tenant_id", mcp.Description("Tenant ID"), mcp.Required()),
	), outstandingBalanceHandler(engine))

	// Staging Management
	s.AddTool(mcp.NewTool("commit_staged_changes",
		mcp.WithDescription("Commit all staged changes for a session. This applies all proposed tasks and expenses at once."),
		mcp.WithString("session_id", mcp.Description("Session ID (defaults to 'default').")),
	), commitStagedChangesHandler(database))

	s.AddTool(mcp.NewTool("discard_staged_changes",
		mcp.WithDescription("Discard all staged changes for a session without applying them."),
		mcp.WithString("session_id", mcp.Description("Session ID (defaults to 'default').")),
	), discardStagedChangesHandler(database))

	s.AddTool(mcp.NewTool("list_staged_changes",
		mcp.WithDescription("List all staged changes for a session. Use this to review a proposed plan before committing."),
		mcp.WithString("session_id", mcp.Description("Session ID (defaults to 'default').")),
	), listStagedChangesHandler(database))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func createTaskHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := mcp.ParseString(request, "session_id", "default")

		t := &models.Task{
			Title:               mcp.ParseString(request, "title", ""),
			Description:         mcp.ParseString(request, "description", ""),
			Category:            mcp.ParseString(request, "category", ""),
			Priority:            models.TaskPriority(mcp.ParseString(request, "priority", "")),
			IsRecurring:         mcp.ParseBoolean(request, "is_recurring", false),
			CommunicationMethod: models.CommunicationMethod(mcp.ParseString(request, "communication_method", "")),
		}

		args, _ := request.Params.Arguments.(map[string]any)
		if v, ok := args["due_date"].(string); ok {
			due, err := time.Parse("2006-01-02", v)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("due_date %q is not YYYY-MM-DD", v)), nil
			}
			t.DueDate = &due
		}
		if v, ok := args["assigned_to"].(string); ok {
			t.AssignedTo = &v
		}
		if v, ok := args["property_id"].(string); ok {
			t.PropertyID = &v
		}
		if v, ok := args["tenant_id"].(string); ok {
			t.TenantID = &v
		}
		if v, ok := args["recurrence_period"].(string); ok {
			period := models.RecurrencePeriod(v)
			t.RecurrencePeriod = &period
		}
		if v, ok := args["recipient_email"].(string); ok {
			t.RecipientEmail = &v
		}
		if v, ok := args["recipient_phone"].(string); ok {
			t.RecipientPhone = &v
		}

		database.Staging.AddTask(sessionID, t)
		return mcp.NewToolResultText(fmt.Sprintf("Task '%s' staged for session '%s'. Propose another or call 'commit_staged_changes' to apply.", t.Title, sessionID)), nil
	}
}

// notifyTaskChange sends a task's configured notifications after a recorded
// mutation. Delivery outcomes live on the communication records; a rejected
// dispatch must not fail the mutation that triggered it.
func notifyTaskChange(ctx context.Context, dispatcher *dispatch.Dispatcher, t *models.Task, entry *models.HistoryEntry) {
	if entry == nil || t.CommunicationMethod == models.CommunicationNone {
		return
	}
	if _, err := dispatcher.Dispatch(ctx, t, nil); err != nil {
		log.Printf("task %s notification rejected: %v", t.ID, err)
	}
}

func updateTaskHandler(database *db.DB, dispatcher *dispatch.Dispatcher) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")

		var patch models.TaskPatch
		args, _ := request.Params.Arguments.(map[string]any)
		if v, ok := args["title"].(string); ok {
			patch.Title = &v
		}
		if v, ok := args["description"].(string); ok {
			patch.Description = &v
		}
		if v, ok := args["category"].(string); ok {
			patch.Category = &v
		}
		if v, ok := args["priority"].(string); ok {
			priority := models.TaskPriority(v)
			patch.Priority = &priority
		}
		if v, ok := args["due_date"].(string); ok {
			due, err := time.Parse("2006-01-02", v)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("due_date %q is not YYYY-MM-DD", v)), nil
			}
			patch.DueDate = &due
		}
		if v, ok := args["assigned_to"].(string); ok {
			patch.AssignedTo = &v
		}

		t, entry, err := database.PatchTask(ctx, id, patch)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if entry == nil {
			return mcp.NewToolResultText("No changes"), nil
		}
		notifyTaskChange(ctx, dispatcher, t, entry)
		return mcp.NewToolResultText(fmt.Sprintf("Task updated: %s", entry.Action)), nil
	}
}

func updateTaskStatusHandler(database *db.DB, dispatcher *dispatch.Dispatcher) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")
		status := models.TaskStatus(mcp.ParseString(request, "status", ""))

		t, entry, err := database.PatchTask(ctx, id, models.TaskPatch{Status: &status})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if entry == nil {
			return mcp.NewToolResultText("No changes"), nil
		}
		notifyTaskChange(ctx, dispatcher, t, entry)
		return mcp.NewToolResultText(fmt.Sprintf("Task status updated: %s", entry.Action)), nil
	}
}

func getTaskHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")

		t, err := database.GetTask(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if t == nil {
			return mcp.NewToolResultError(fmt.Sprintf("Task with ID '%s' not found", id)), nil
		}

		data, err := json.Marshal(t)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func listTasksHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var filter db.TaskFilter
		args, _ := request.Params.Arguments.(map[string]any)
		if v, ok := args["status"].(string); ok {
			status := models.TaskStatus(v)
			filter.Status = &status
		}
		if v, ok := args["property_id"].(string); ok {
			filter.PropertyID = &v
		}
		if v, ok := args["tenant_id"].(string); ok {
			filter.TenantID = &v
		}

		tasks, err := database.ListTasks(ctx, filter)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(map[string]interface{}{"tasks": tasks})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func taskHistoryHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")

		entries, err := database.ListTaskHistory(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(map[string]interface{}{"history": entries})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func deleteTaskHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")

		if err := database.DeleteTask(ctx, id); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("Task deleted successfully"), nil
	}
}

func sendCommunicationHandler(database *db.DB, dispatcher *dispatch.Dispatcher) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID := mcp.ParseString(request, "task_id", "")

		t, err := database.GetTask(ctx, taskID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if t == nil {
			return mcp.NewToolResultError(fmt.Sprintf("Task with ID '%s' not found", taskID)), nil
		}

		// Any ad hoc argument makes this an override; a partial override
		// is rejected rather than falling back to the task's settings.
		var override *dispatch.Override
		args, _ := request.Params.Arguments.(map[string]any)
		_, hasMethod := args["method"]
		_, hasRecipient := args["recipient"]
		_, hasMessage := args["message"]
		if hasMethod || hasRecipient || hasMessage {
			override = &dispatch.Override{
				Method:    models.CommunicationMethod(mcp.ParseString(request, "method", "")),
				Recipient: mcp.ParseString(request, "recipient", ""),
				Message:   mcp.ParseString(request, "message", ""),
			}
			if subject, ok := args["subject"].(string); ok {
				override.Subject = &subject
			}
		}

		records, err := dispatcher.Dispatch(ctx, t, override)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(map[string]interface{}{"communications": records})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func recordExpenseHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := mcp.ParseString(request, "session_id", "default")

		e := &models.Expense{
			PropertyID:  mcp.ParseString(request, "property_id", ""),
			Category:    mcp.ParseString(request, "category", ""),
			Description: mcp.ParseString(request, "description", ""),
			Amount:      mcp.ParseString(request, "amount", ""),
			IsRecurring: mcp.ParseBoolean(request, "is_recurring", false),
			Date:        time.Now().UTC(),
		}

		args, _ := request.Params.Arguments.(map[string]any)
		if v, ok := args["date"].(string); ok {
			date, err := time.Parse("2006-01-02", v)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("date %q is not YYYY-MM-DD", v)), nil
			}
			e.Date = date
		}
		if v, ok := args["recurrence_period"].(string); ok {
			period := models.RecurrencePeriod(v)
			e.RecurrencePeriod = &period
		}
		if v, ok := args["vendor_name"].(string); ok {
			e.VendorName = &v
		}
		if v, ok := args["notes"].(string); ok {
			e.Notes = &v
		}

		database.Staging.AddExpense(sessionID, e)
		return mcp.NewToolResultText(fmt.Sprintf("Expense '%s' staged for session '%s'. Propose another or call 'commit_staged_changes' to apply.", e.Category, sessionID)), nil
	}
}

func monthlyRecurringTotalHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var propertyID *string
		args, _ := request.Params.Arguments.(map[string]any)
		if v, ok := args["property_id"].(string); ok {
			propertyID = &v
		}

		expenses, err := database.ListExpenses(ctx, propertyID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		total, err := recurrence.MonthlyRecurringTotal(expenses)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf(`{"monthlyTotal": %q}`, models.FormatAmount(total))), nil
	}
}

func outstandingBalanceHandler(engine *billing.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tenantID := mcp.ParseString(request, "tenant_id", "")

		balance, err := engine.OutstandingBalance(ctx, tenantID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf(`{"tenantId": %q, "balance": %q}`, tenantID, models.FormatAmount(balance))), nil
	}
}

func commitStagedChangesHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := mcp.ParseString(request, "session_id", "default")
		if err := database.CommitBatch(ctx, sessionID); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Staged changes for session '%s' committed successfully", sessionID)), nil
	}
}

func discardStagedChangesHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := mcp.ParseString(request, "session_id", "default")
		database.Staging.Discard(sessionID)
		return mcp.NewToolResultText(fmt.Sprintf("Staged changes for session '%s' discarded", sessionID)), nil
	}
}

func listStagedChangesHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := mcp.ParseString(request, "session_id", "default")

		items := database.Staging.Peek(sessionID)
		data, err := json.Marshal(items)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}
