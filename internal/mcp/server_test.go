package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ldi/caretaker/internal/billing"
	"github.com/ldi/caretaker/internal/db"
	"github.com/ldi/caretaker/internal/dispatch"
	"github.com/ldi/caretaker/pkg/models"
)

func newTestMCPServer(t *testing.T) (*server.MCPServer, *db.DB) {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	ctx := context.Background()
	if err := database.Init(ctx); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	if err := database.Seed(ctx); err != nil {
		t.Fatalf("Failed to seed database: %v", err)
	}

	dispatcher := dispatch.New(database, nil, nil, 0)
	engine := billing.New(database)
	return NewServer(database, dispatcher, engine), database
}

func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	tool := s.GetTool(name)
	if tool == nil {
		t.Fatalf("Tool %s not found", name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := tool.Handler(context.Background(), req)
	if err != nil {
		t.Fatalf("Handler %s failed: %v", name, err)
	}
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("Expected content in tool result")
	}
	return result.Content[0].(mcp.TextContent).Text
}

func TestServerInitialization(t *testing.T) {
	s, _ := newTestMCPServer(t)
	stdio := server.NewStdioServer(s)

	r, w := io.Pipe()
	stdout := &bytes.Buffer{}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- stdio.Listen(ctx, r, stdout)
	}()

	initReq := mcp.InitializeRequest{}
	initReq.Method = "initialize"
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}

	rawReq := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params":  initReq.Params,
	}

	data, err := json.Marshal(rawReq)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	w.Write(data)
	w.Write([]byte("\n"))

	time.Sleep(200 * time.Millisecond)

	if stdout.Len() == 0 {
		t.Fatal("Expected response from server, got none")
	}

	var resp struct {
		JSONRPC string `json:"jsonrpc"`
		ID      int    `json:"id"`
		Result  struct {
			ProtocolVersion string `json:"protocolVersion"`
			ServerInfo      struct {
				Name    string `json:"name"`
				Version string `json:"version"`
			} `json:"serverInfo"`
		} `json:"result"`
	}

	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v\nOutput: %s", err, stdout.String())
	}

	if resp.ID != 1 {
		t.Errorf("Expected id 1, got %v", resp.ID)
	}
	if resp.Result.ServerInfo.Name != "Caretaker" {
		t.Errorf("Expected server name Caretaker, got %v", resp.Result.ServerInfo.Name)
	}
}

func TestUpdateTaskStatusDispatchesNotifications(t *testing.T) {
	s, database := newTestMCPServer(t)
	ctx := context.Background()

	result := callTool(t, s, "create_task", map[string]interface{}{
		"title":                "Rent reminder",
		"communication_method": "email",
		"recipient_email":      "jordan@example.com",
	})
	if result.IsError {
		t.Fatalf("Tool returned error: %v", result.Content[0])
	}
	if result := callTool(t, s, "commit_staged_changes", map[string]interface{}{}); result.IsError {
		t.Fatalf("Commit returned error: %v", result.Content[0])
	}

	tasks, err := database.ListTasks(ctx, db.TaskFilter{})
	if err != nil {
		t.Fatalf("Failed to list tasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("Expected 1 task, got %d", len(tasks))
	}

	result = callTool(t, s, "update_task_status", map[string]interface{}{
		"id":     tasks[0].ID,
		"status": "completed",
	})
	if result.IsError {
		t.Fatalf("Tool returned error: %v", result.Content[0])
	}

	records, err := database.ListTaskCommunications(ctx, tasks[0].ID)
	if err != nil {
		t.Fatalf("Failed to list communications: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 communication after status change, got %d", len(records))
	}
	if records[0].Status != models.CommunicationSent {
		t.Errorf("Expected sent status, got %q", records[0].Status)
	}
	if records[0].Recipient != "jordan@example.com" {
		t.Errorf("Expected the task's stored recipient, got %q", records[0].Recipient)
	}

	// Repeating the same status is a no-op and notifies nobody.
	if result := callTool(t, s, "update_task_status", map[string]interface{}{
		"id":     tasks[0].ID,
		"status": "completed",
	}); result.IsError {
		t.Fatalf("Tool returned error: %v", result.Content[0])
	}
	records, err = database.ListTaskCommunications(ctx, tasks[0].ID)
	if err != nil {
		t.Fatalf("Failed to list communications: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Expected no new communications after no-op update, got %d", len(records))
	}
}

func TestToolHandlers(t *testing.T) {
	s, database := newTestMCPServer(t)
	ctx := context.Background()

	var taskID string

	t.Run("create_task_staged_then_committed", func(t *testing.T) {
		result := callTool(t, s, "create_task", map[string]interface{}{
			"title":    "Annual boiler inspection",
			"category": "maintenance",
			"priority": "high",
		})
		if result.IsError {
			t.Fatalf("Tool returned error: %v", result.Content[0])
		}

		// Nothing persists until the staged batch is committed.
		tasks, err := database.ListTasks(ctx, db.TaskFilter{})
		if err != nil {
			t.Fatalf("Failed to list tasks: %v", err)
		}
		if len(tasks) != 0 {
			t.Fatalf("Expected no tasks before commit, got %d", len(tasks))
		}

		result = callTool(t, s, "commit_staged_changes", map[string]interface{}{})
		if result.IsError {
			t.Fatalf("Commit returned error: %v", result.Content[0])
		}

		tasks, err = database.ListTasks(ctx, db.TaskFilter{})
		if err != nil {
			t.Fatalf("Failed to list tasks: %v", err)
		}
		if len(tasks) != 1 {
			t.Fatalf("Expected 1 task after commit, got %d", len(tasks))
		}
		if tasks[0].Priority != models.TaskPriorityHigh {
			t.Errorf("Expected high priority, got %q", tasks[0].Priority)
		}
		taskID = tasks[0].ID
	})

	t.Run("update_task_status_records_history", func(t *testing.T) {
		result := callTool(t, s, "update_task_status", map[string]interface{}{
			"id":     taskID,
			"status": "completed",
		})
		if result.IsError {
			t.Fatalf("Tool returned error: %v", result.Content[0])
		}

		result = callTool(t, s, "task_history", map[string]interface{}{"id": taskID})
		var resp struct {
			History []models.HistoryEntry `json:"history"`
		}
		if err := json.Unmarshal([]byte(resultText(t, result)), &resp); err != nil {
			t.Fatalf("Failed to unmarshal history: %v", err)
		}
		if len(resp.History) != 1 {
			t.Fatalf("Expected 1 history entry, got %d", len(resp.History))
		}
		if resp.History[0].Action != "status: pending -> completed" {
			t.Errorf("Unexpected action %q", resp.History[0].Action)
		}
	})

	t.Run("update_task_noop_reports_no_changes", func(t *testing.T) {
		result := callTool(t, s, "update_task", map[string]interface{}{
			"id":       taskID,
			"category": "maintenance",
		})
		if result.IsError {
			t.Fatalf("Tool returned error: %v", result.Content[0])
		}
		if text := resultText(t, result); text != "No changes" {
			t.Errorf("Expected 'No changes', got %q", text)
		}
	})

	t.Run("get_task", func(t *testing.T) {
		result := callTool(t, s, "get_task", map[string]interface{}{"id": taskID})
		if result.IsError {
			t.Fatalf("Tool returned error: %v", result.Content[0])
		}

		var task models.Task
		if err := json.Unmarshal([]byte(resultText(t, result)), &task); err != nil {
			t.Fatalf("Failed to unmarshal task: %v", err)
		}
		if task.Status != models.TaskStatusCompleted {
			t.Errorf("Expected completed status, got %q", task.Status)
		}
	})

	t.Run("get_task_unknown_id", func(t *testing.T) {
		result := callTool(t, s, "get_task", map[string]interface{}{"id": "nonexistent"})
		if !result.IsError {
			t.Error("Expected error for unknown task ID")
		}
	})

	t.Run("send_communication_override", func(t *testing.T) {
		result := callTool(t, s, "send_communication", map[string]interface{}{
			"task_id":   taskID,
			"method":    "email",
			"recipient": "jordan@example.com",
			"message":   "Inspection is booked for Tuesday.",
		})
		if result.IsError {
			t.Fatalf("Tool returned error: %v", result.Content[0])
		}

		var resp struct {
			Communications []models.Communication `json:"communications"`
		}
		if err := json.Unmarshal([]byte(resultText(t, result)), &resp); err != nil {
			t.Fatalf("Failed to unmarshal communications: %v", err)
		}
		if len(resp.Communications) != 1 {
			t.Fatalf("Expected 1 communication, got %d", len(resp.Communications))
		}
		if resp.Communications[0].Status != models.CommunicationSent {
			t.Errorf("Expected sent status, got %q", resp.Communications[0].Status)
		}
	})

	t.Run("send_communication_rejects_bad_recipient", func(t *testing.T) {
		result := callTool(t, s, "send_communication", map[string]interface{}{
			"task_id":   taskID,
			"method":    "email",
			"recipient": "not-an-email",
			"message":   "hello",
		})
		if !result.IsError {
			t.Error("Expected error for malformed recipient")
		}
	})

	t.Run("record_expense_and_recurring_total", func(t *testing.T) {
		properties, err := database.ListProperties(ctx)
		if err != nil {
			t.Fatalf("Failed to list properties: %v", err)
		}

		result := callTool(t, s, "record_expense", map[string]interface{}{
			"property_id":       properties[0].ID,
			"category":          "insurance",
			"amount":            "1200.00",
			"is_recurring":      true,
			"recurrence_period": "yearly",
		})
		if result.IsError {
			t.Fatalf("Tool returned error: %v", result.Content[0])
		}

		result = callTool(t, s, "commit_staged_changes", map[string]interface{}{})
		if result.IsError {
			t.Fatalf("Commit returned error: %v", result.Content[0])
		}

		result = callTool(t, s, "monthly_recurring_total", map[string]interface{}{})
		if result.IsError {
			t.Fatalf("Tool returned error: %v", result.Content[0])
		}
		if text := resultText(t, result); !strings.Contains(text, `"100.00"`) {
			t.Errorf("Expected monthly total 100.00, got %s", text)
		}
	})

	t.Run("discard_staged_changes", func(t *testing.T) {
		result := callTool(t, s, "create_task", map[string]interface{}{
			"title":      "Throwaway",
			"session_id": "scratch",
		})
		if result.IsError {
			t.Fatalf("Tool returned error: %v", result.Content[0])
		}

		callTool(t, s, "discard_staged_changes", map[string]interface{}{"session_id": "scratch"})

		result = callTool(t, s, "list_staged_changes", map[string]interface{}{"session_id": "scratch"})
		var items db.StagedItems
		if err := json.Unmarshal([]byte(resultText(t, result)), &items); err != nil {
			t.Fatalf("Failed to unmarshal staged items: %v", err)
		}
		if len(items.Tasks) != 0 {
			t.Errorf("Expected no staged tasks after discard, got %d", len(items.Tasks))
		}
	})

	t.Run("outstanding_balance", func(t *testing.T) {
		tenants, err := database.ListTenants(ctx)
		if err != nil {
			t.Fatalf("Failed to list tenants: %v", err)
		}

		result := callTool(t, s, "outstanding_balance", map[string]interface{}{
			"tenant_id": tenants[0].ID,
		})
		if result.IsError {
			t.Fatalf("Tool returned error: %v", result.Content[0])
		}
		if text := resultText(t, result); !strings.Contains(text, `"0.00"`) {
			t.Errorf("Expected zero balance, got %s", text)
		}
	})

	t.Run("send_communication_partial_override_rejected", func(t *testing.T) {
		result := callTool(t, s, "send_communication", map[string]interface{}{
			"task_id":   taskID,
			"recipient": "jordan@example.com",
		})
		if !result.IsError {
			t.Error("Expected error for partial override")
		}
	})

	t.Run("delete_task", func(t *testing.T) {
		result := callTool(t, s, "delete_task", map[string]interface{}{"id": taskID})
		if result.IsError {
			t.Fatalf("Tool returned error: %v", result.Content[0])
		}

		result = callTool(t, s, "delete_task", map[string]interface{}{"id": taskID})
		if !result.IsError {
			t.Error("Expected error deleting an already-deleted task")
		}
	})
}
