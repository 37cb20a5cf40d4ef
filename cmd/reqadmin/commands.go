package main

import (
	"fmt"
	"strconv"

	"requisition/internal/auth"
	"requisition/internal/database"
	"requisition/internal/model"
	"requisition/internal/repository"
	"requisition/internal/service"
	"requisition/internal/workflow"

	"github.com/spf13/cobra"
)

var (
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE:  runMigrate,
	}

	createUserCmd = &cobra.Command{
		Use:   "create-user",
		Short: "Register an account with its designation and line manager",
		RunE:  runCreateUser,
	}

	statusCmd = &cobra.Command{
		Use:   "status [requisition-id]",
		Short: "Show the workflow state of a requisition",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}

	pendingCmd = &cobra.Command{
		Use:   "pending [designation]",
		Short: "List requisitions waiting on a designation",
		Long:  "List requisitions waiting on a designation. The argument may also be a status such as \"pending with Storekeeper\".",
		Args:  cobra.ExactArgs(1),
		RunE:  runPending,
	}

	newUser service.CreateUserRequest
)

func init() {
	createUserCmd.Flags().StringVar(&newUser.Username, "username", "", "Login name")
	createUserCmd.Flags().StringVar(&newUser.Email, "email", "", "Email address")
	createUserCmd.Flags().StringVar(&newUser.Password, "password", "", "Initial password (min 6 characters)")
	createUserCmd.Flags().StringVar(&newUser.Phone, "phone", "", "Phone number")
	createUserCmd.Flags().StringVar(&newUser.Role, "role", model.RoleStaff, "Account role (staff or admin)")
	createUserCmd.Flags().StringVar(&newUser.Designation, "designation", "", "Job designation, e.g. Storekeeper")
	createUserCmd.Flags().StringVar(&newUser.LineManager, "line-manager", "", "Designation this account reports to")
	_ = createUserCmd.MarkFlagRequired("username")
	_ = createUserCmd.MarkFlagRequired("email")
	_ = createUserCmd.MarkFlagRequired("password")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := database.Migrate(e.db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Println("Schema is up to date")
	return nil
}

func runCreateUser(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	tokens := auth.NewTokenManager([]byte(e.cfg.Auth.JWTSecret), e.cfg.Auth.TokenTTL)
	users := service.NewUserService(repository.NewUserRepository(e.db), repository.NewAuditRepository(e.db), tokens, e.logger)

	user, err := users.CreateUser(cmd.Context(), nil, newUser)
	if err != nil {
		return err
	}
	fmt.Printf("Created %s (%s) id=%s designation=%q line_manager=%q\n",
		user.Username, user.Role, user.ID, user.Designation, user.LineManager)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid requisition id %q", args[0])
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	r, err := requisitions(e).GetDetails(cmd.Context(), uint(id))
	if err != nil {
		return err
	}

	fmt.Printf("%s  %s\n", r.RequestNumber, r.StatusText)
	fmt.Printf("  requestor:  %s\n", r.RequestorName)
	fmt.Printf("  raised:     %s\n", r.Timestamp)
	for _, item := range r.LineItems {
		fmt.Printf("  - #%d %s x%d [%s]\n", item.ID, item.ItemName, item.Quantity, item.Category)
	}
	for _, c := range r.Comments {
		fmt.Printf("  rejected by %s at %s: %s\n", c.CreatedBy, c.CreatedAt, c.Comment)
	}
	return nil
}

func runPending(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	role := args[0]
	if status, err := workflow.ParseStatus(role); err == nil {
		if status.Kind != workflow.KindPending {
			return fmt.Errorf("%q is not a pending status", role)
		}
		role = status.PendingWith
	}

	items, total, err := requisitions(e).ListPending(cmd.Context(), role, 1, 100)
	if err != nil {
		return err
	}
	if total == 0 {
		fmt.Printf("Nothing is %s\n", workflow.Pending(role))
		return nil
	}
	for _, r := range items {
		fmt.Printf("%-6d %-16s %s\n", r.ID, r.RequestNumber, r.Description)
	}
	if total > int64(len(items)) {
		fmt.Printf("... %d more\n", total-int64(len(items)))
	}
	return nil
}

// requisitions builds a read-only engine; no attachments or notifications are involved
func requisitions(e *env) service.RequisitionService {
	return service.NewRequisitionService(
		repository.NewRequisitionRepository(e.db),
		repository.NewLineItemRepository(e.db),
		repository.NewCommentRepository(e.db),
		repository.NewAuditRepository(e.db),
		repository.NewTransactionManager(e.db),
		nil, nil, e.logger,
		service.RequisitionOptions{Workflow: workflow.Options{EnforceApprover: e.cfg.Workflow.EnforceApprover}},
	)
}
