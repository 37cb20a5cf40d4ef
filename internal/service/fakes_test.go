package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"requisition/internal/model"
	"requisition/internal/repository"

	"github.com/google/uuid"
)

// memStore is the shared backing state of the fake repositories. The fake
// transaction manager snapshots it so a failed operation leaves no trace.
type memStore struct {
	requisitions map[uint]model.Requisition
	lineItems    map[uint]model.LineItem
	comments     []model.RequisitionComment
	audits       []model.AuditLog
	users        map[uuid.UUID]model.User
	expenses     map[uint]model.Expense

	nextRequisitionID uint
	nextLineItemID    uint
	nextCommentID     uint
	nextExpenseID     uint
	nextExpenseItemID uint
}

func newMemStore() *memStore {
	return &memStore{
		requisitions: map[uint]model.Requisition{},
		lineItems:    map[uint]model.LineItem{},
		users:        map[uuid.UUID]model.User{},
		expenses:     map[uint]model.Expense{},
	}
}

func (s *memStore) clone() *memStore {
	c := &memStore{
		requisitions:      make(map[uint]model.Requisition, len(s.requisitions)),
		lineItems:         make(map[uint]model.LineItem, len(s.lineItems)),
		comments:          append([]model.RequisitionComment(nil), s.comments...),
		audits:            append([]model.AuditLog(nil), s.audits...),
		users:             make(map[uuid.UUID]model.User, len(s.users)),
		expenses:          make(map[uint]model.Expense, len(s.expenses)),
		nextRequisitionID: s.nextRequisitionID,
		nextLineItemID:    s.nextLineItemID,
		nextCommentID:     s.nextCommentID,
		nextExpenseID:     s.nextExpenseID,
		nextExpenseItemID: s.nextExpenseItemID,
	}
	for k, v := range s.requisitions {
		c.requisitions[k] = v
	}
	for k, v := range s.lineItems {
		c.lineItems[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.expenses {
		v.LineItems = append([]model.ExpenseLineItem(nil), v.LineItems...)
		c.expenses[k] = v
	}
	return c
}

func (s *memStore) restore(from *memStore) {
	*s = *from
}

func (s *memStore) itemsOf(requisitionID uint) []model.LineItem {
	var items []model.LineItem
	for _, item := range s.lineItems {
		if item.RequisitionID == requisitionID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (s *memStore) commentsOf(requisitionID uint) []model.RequisitionComment {
	var out []model.RequisitionComment
	for _, c := range s.comments {
		if c.RequisitionID == requisitionID {
			out = append(out, c)
		}
	}
	return out
}

// --- TransactionManager ---

type fakeTxManager struct {
	store *memStore
}

func (m *fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	snapshot := m.store.clone()
	if err := fn(ctx); err != nil {
		m.store.restore(snapshot)
		return err
	}
	return nil
}

// --- RequisitionRepository ---

type fakeRequisitionRepo struct {
	store *memStore
	// stale makes every UpdateState lose the optimistic lock
	stale bool
}

func (r *fakeRequisitionRepo) Create(_ context.Context, req *model.Requisition) error {
	for _, existing := range r.store.requisitions {
		if existing.RequestNumber == req.RequestNumber {
			return fmt.Errorf("request_number %s: %w", req.RequestNumber, repository.ErrDuplicate)
		}
	}
	r.store.nextRequisitionID++
	req.ID = r.store.nextRequisitionID
	row := *req
	row.LineItems, row.Comments, row.Requestor = nil, nil, nil
	r.store.requisitions[row.ID] = row
	return nil
}

func (r *fakeRequisitionRepo) load(id uint) (*model.Requisition, error) {
	row, ok := r.store.requisitions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	row.LineItems = r.store.itemsOf(id)
	return &row, nil
}

func (r *fakeRequisitionRepo) FindByID(_ context.Context, id uint) (*model.Requisition, error) {
	return r.load(id)
}

func (r *fakeRequisitionRepo) FindByIDWithRelations(_ context.Context, id uint) (*model.Requisition, error) {
	req, err := r.load(id)
	if err != nil {
		return nil, err
	}
	if u, ok := r.store.users[req.RequestorID]; ok {
		req.Requestor = &u
	}
	return req, nil
}

func (r *fakeRequisitionRepo) FindByRequestNumber(_ context.Context, requestNumber string) (*model.Requisition, error) {
	for id, row := range r.store.requisitions {
		if row.RequestNumber == requestNumber {
			return r.load(id)
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeRequisitionRepo) ExistsRequestNumber(_ context.Context, requestNumber string) (bool, error) {
	for _, row := range r.store.requisitions {
		if row.RequestNumber == requestNumber {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRequisitionRepo) list(page, limit int, keep func(model.Requisition) bool) ([]model.Requisition, int64) {
	var matched []model.Requisition
	for _, row := range r.store.requisitions {
		if keep(row) {
			matched = append(matched, row)
		}
	}
	// newest first, like the gorm repository
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := int64(len(matched))
	start := (page - 1) * limit
	if start >= len(matched) {
		return []model.Requisition{}, total
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	page1 := matched[start:end]
	for i := range page1 {
		page1[i].LineItems = r.store.itemsOf(page1[i].ID)
	}
	return page1, total
}

func (r *fakeRequisitionRepo) ListPendingWith(_ context.Context, role string, page, limit int) ([]model.Requisition, int64, error) {
	items, total := r.list(page, limit, func(row model.Requisition) bool {
		return row.Status == model.RequisitionPending && row.PendingWith == role
	})
	return items, total, nil
}

func (r *fakeRequisitionRepo) ListByRequestor(_ context.Context, requestorID uuid.UUID, page, limit int) ([]model.Requisition, int64, error) {
	items, total := r.list(page, limit, func(row model.Requisition) bool {
		return row.RequestorID == requestorID
	})
	return items, total, nil
}

func (r *fakeRequisitionRepo) UpdateState(_ context.Context, req *model.Requisition) error {
	row, ok := r.store.requisitions[req.ID]
	if !ok || r.stale || row.Version != req.Version {
		return repository.ErrStaleVersion
	}
	row.Status = req.Status
	row.PendingWith = req.PendingWith
	row.Description = req.Description
	row.AttachmentPath = req.AttachmentPath
	row.Version++
	r.store.requisitions[req.ID] = row
	req.Version++
	return nil
}

func (r *fakeRequisitionRepo) Delete(_ context.Context, id uint) error {
	if _, ok := r.store.requisitions[id]; !ok {
		return repository.ErrNotFound
	}
	kept := r.store.comments[:0:0]
	for _, c := range r.store.comments {
		if c.RequisitionID != id {
			kept = append(kept, c)
		}
	}
	r.store.comments = kept
	for itemID, item := range r.store.lineItems {
		if item.RequisitionID == id {
			delete(r.store.lineItems, itemID)
		}
	}
	delete(r.store.requisitions, id)
	return nil
}

// --- ExpenseRepository ---

type fakeExpenseRepo struct {
	store *memStore
	stale bool
}

func (r *fakeExpenseRepo) Create(_ context.Context, expense *model.Expense) error {
	for _, existing := range r.store.expenses {
		if existing.ExpenseNumber == expense.ExpenseNumber {
			return fmt.Errorf("expense_number %s: %w", expense.ExpenseNumber, repository.ErrDuplicate)
		}
	}
	r.store.nextExpenseID++
	expense.ID = r.store.nextExpenseID
	for i := range expense.LineItems {
		r.store.nextExpenseItemID++
		expense.LineItems[i].ID = r.store.nextExpenseItemID
		expense.LineItems[i].ExpenseID = expense.ID
	}
	row := *expense
	row.Requestor = nil
	row.LineItems = append([]model.ExpenseLineItem(nil), expense.LineItems...)
	r.store.expenses[row.ID] = row
	return nil
}

func (r *fakeExpenseRepo) FindByID(_ context.Context, id uint) (*model.Expense, error) {
	row, ok := r.store.expenses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	row.LineItems = append([]model.ExpenseLineItem(nil), row.LineItems...)
	return &row, nil
}

func (r *fakeExpenseRepo) FindByIDWithRelations(ctx context.Context, id uint) (*model.Expense, error) {
	expense, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u, ok := r.store.users[expense.RequestorID]; ok {
		expense.Requestor = &u
	}
	return expense, nil
}

func (r *fakeExpenseRepo) list(page, limit int, keep func(model.Expense) bool) ([]model.Expense, int64) {
	var matched []model.Expense
	for _, row := range r.store.expenses {
		if keep(row) {
			matched = append(matched, row)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := int64(len(matched))
	start := (page - 1) * limit
	if start >= len(matched) {
		return []model.Expense{}, total
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total
}

func (r *fakeExpenseRepo) ListPendingWith(_ context.Context, role string, page, limit int) ([]model.Expense, int64, error) {
	items, total := r.list(page, limit, func(row model.Expense) bool {
		return row.Status == model.RequisitionPending && row.PendingWith == role
	})
	return items, total, nil
}

func (r *fakeExpenseRepo) ListByRequestor(_ context.Context, requestorID uuid.UUID, page, limit int) ([]model.Expense, int64, error) {
	items, total := r.list(page, limit, func(row model.Expense) bool {
		return row.RequestorID == requestorID
	})
	return items, total, nil
}

func (r *fakeExpenseRepo) UpdateState(_ context.Context, expense *model.Expense) error {
	row, ok := r.store.expenses[expense.ID]
	if !ok || r.stale || row.Version != expense.Version {
		return repository.ErrStaleVersion
	}
	row.Status = expense.Status
	row.PendingWith = expense.PendingWith
	row.Version++
	r.store.expenses[expense.ID] = row
	expense.Version++
	return nil
}

// --- LineItemRepository ---

type fakeLineItemRepo struct {
	store *memStore
	// failCreate, when set, is returned by CreateBatch after the rows were written
	failCreate error
}

func (r *fakeLineItemRepo) CreateBatch(_ context.Context, items []model.LineItem) error {
	for i := range items {
		r.store.nextLineItemID++
		items[i].ID = r.store.nextLineItemID
		r.store.lineItems[items[i].ID] = items[i]
	}
	return r.failCreate
}

func (r *fakeLineItemRepo) Update(_ context.Context, item *model.LineItem) error {
	existing, ok := r.store.lineItems[item.ID]
	if !ok || existing.RequisitionID != item.RequisitionID {
		return repository.ErrNotFound
	}
	r.store.lineItems[item.ID] = *item
	return nil
}

// --- CommentRepository ---

type fakeCommentRepo struct {
	store *memStore
}

func (r *fakeCommentRepo) Create(_ context.Context, comment *model.RequisitionComment) error {
	r.store.nextCommentID++
	comment.ID = r.store.nextCommentID
	r.store.comments = append(r.store.comments, *comment)
	return nil
}

func (r *fakeCommentRepo) ListByRequisition(_ context.Context, requisitionID uint) ([]model.RequisitionComment, error) {
	return r.store.commentsOf(requisitionID), nil
}

// --- AuditRepository ---

type fakeAuditRepo struct {
	store *memStore
	fail  error
}

func (r *fakeAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	if r.fail != nil {
		return r.fail
	}
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()
	r.store.audits = append(r.store.audits, *entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, entityID string, page, limit int) ([]model.AuditLog, int64, error) {
	var matched []model.AuditLog
	for i := len(r.store.audits) - 1; i >= 0; i-- {
		if entityID == "" || r.store.audits[i].EntityID == entityID {
			matched = append(matched, r.store.audits[i])
		}
	}
	total := int64(len(matched))
	start := (page - 1) * limit
	if start >= len(matched) {
		return []model.AuditLog{}, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// --- UserRepository ---

type fakeUserRepo struct {
	store *memStore
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range r.store.users {
		if u.Email == user.Email || u.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	r.store.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	u, ok := r.store.users[uid]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *fakeUserRepo) find(match func(model.User) bool) (*model.User, error) {
	for _, u := range r.store.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Email == email })
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Username == username })
}

func (r *fakeUserRepo) ListByDesignation(_ context.Context, designation string) ([]model.User, error) {
	var out []model.User
	for _, u := range r.store.users {
		if u.Designation == designation {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// --- collaborators ---

type fakeNotifier struct {
	messages [][]byte
}

func (n *fakeNotifier) Publish(message []byte) {
	n.messages = append(n.messages, message)
}

type fakeAttachments struct {
	files map[string][]byte
	seq   int
}

func newFakeAttachments() *fakeAttachments {
	return &fakeAttachments{files: map[string][]byte{}}
}

func (a *fakeAttachments) Save(_ context.Context, filename string, content io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, content); err != nil {
		return "", err
	}
	a.seq++
	path := fmt.Sprintf("uploads/%d_%s", a.seq, strings.ReplaceAll(filename, "/", "_"))
	a.files[path] = buf.Bytes()
	return path, nil
}

func (a *fakeAttachments) Remove(_ context.Context, path string) error {
	delete(a.files, path)
	return nil
}
