package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"paperlib-sync-server/internal/domain"
	"paperlib-sync-server/internal/repository"

	"github.com/sirupsen/logrus"
)

// PDFInspector looks up the byte size of a stored PDF.
type PDFInspector interface {
	ObjectSize(ctx context.Context, key string) (int64, error)
}

type outcome int

const (
	outcomeIgnored outcome = iota
	outcomeCreated
	outcomeUpdated
	outcomeDeleted
)

// changeApplier applies one batch of client changes inside an open
// transaction. Each item runs in its own savepoint, so a rejected item
// leaves no trace and never stops the batch.
type changeApplier struct {
	tx         *repository.Tx
	ownerID    string
	clientTag  string
	now        time.Time
	reconciler *Reconciler
	duplicates *DuplicateResolver
	pdfs       PDFInspector
	log        logrus.FieldLogger
}

func newChangeApplier(tx *repository.Tx, ownerID, clientTag string, now time.Time, pdfs PDFInspector, log logrus.FieldLogger) *changeApplier {
	return &changeApplier{
		tx:         tx,
		ownerID:    ownerID,
		clientTag:  clientTag,
		now:        now,
		reconciler: NewReconciler(ownerID, tx.Papers),
		duplicates: NewDuplicateResolver(tx.Papers),
		pdfs:       pdfs,
		log:        log,
	}
}

// Apply processes papers, then collections, then annotations, so that
// annotations can point at papers created earlier in the same batch.
func (a *changeApplier) Apply(ctx context.Context, changes *domain.ChangeSet) (*domain.AppliedChanges, error) {
	applied := domain.NewAppliedChanges()

	if err := a.applyPapers(ctx, &changes.Papers, applied.Papers); err != nil {
		return nil, err
	}
	if err := a.applyCollections(ctx, &changes.Collections, applied.Collections); err != nil {
		return nil, err
	}
	if err := a.applyAnnotations(ctx, &changes.Annotations, applied.Annotations); err != nil {
		return nil, err
	}

	return applied, nil
}

// item runs fn in a savepoint and records its outcome. Only a cancelled
// context aborts the batch.
func (a *changeApplier) item(ctx context.Context, kind string, report *domain.ApplyReport, ref domain.IDRef, fn func() (outcome, error)) error {
	var out outcome
	err := a.tx.Savepoint(ctx, func() error {
		var err error
		out, err = fn()
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		report.Conflict(ref, err.Error())
		a.log.WithFields(logrus.Fields{
			"user_id": a.ownerID,
			"kind":    kind,
			"ref":     ref.String(),
			"reason":  err.Error(),
		}).Debug("change rejected")
		return nil
	}

	switch out {
	case outcomeCreated:
		report.Created++
	case outcomeUpdated:
		report.Updated++
	case outcomeDeleted:
		report.Deleted++
	}
	return nil
}

// targetID resolves the record an update or delete addresses. Papers
// created earlier in the batch may be addressed by their local id.
func (a *changeApplier) targetID(ref domain.IDRef) (int64, bool) {
	if id, ok := a.reconciler.Mapped(ref); ok {
		return id, true
	}
	return ref.ServerID()
}

func (a *changeApplier) applyPapers(ctx context.Context, changes *domain.EntityChanges[domain.PaperChange], report *domain.ApplyReport) error {
	for i := range changes.Created {
		c := &changes.Created[i]
		err := a.item(ctx, "paper", report, c.Ref(), func() (outcome, error) {
			_, out, err := a.createPaper(ctx, c)
			return out, err
		})
		if err != nil {
			return err
		}
	}

	for i := range changes.Updated {
		c := &changes.Updated[i]
		err := a.item(ctx, "paper", report, c.Ref(), func() (outcome, error) {
			_, out, err := a.updatePaper(ctx, c)
			return out, err
		})
		if err != nil {
			return err
		}
	}

	for _, ref := range changes.Deleted {
		err := a.item(ctx, "paper", report, ref, func() (outcome, error) {
			_, out, err := a.deletePaper(ctx, ref)
			return out, err
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// createPaper deduplicates by DOI only. The id and localId of a create are
// client handles and never address a stored paper.
func (a *changeApplier) createPaper(ctx context.Context, c *domain.PaperChange) (*domain.Paper, outcome, error) {
	doi := normalizeDOI(c.DOI)
	kind, existing, err := a.duplicates.Resolve(ctx, a.ownerID, doi)
	if err != nil {
		return nil, outcomeIgnored, err
	}

	var self int64
	if existing != nil {
		self = existing.ID
	}
	related, err := a.relatedPapers(ctx, c, self)
	if err != nil {
		return nil, outcomeIgnored, err
	}

	switch kind {
	case LiveDuplicate:
		// Patched in place without a version gate.
		if err := applyPaperChange(existing, c, related); err != nil {
			return nil, outcomeIgnored, err
		}
		a.fillPDFSize(ctx, existing, c)
		existing.Version++
		existing.UpdatedAt = a.now
		existing.ClientTag = a.clientTag
		if err := a.tx.Papers.Update(ctx, existing); err != nil {
			return nil, outcomeIgnored, err
		}
		a.mapPaper(c, existing.ID)
		return existing, outcomeUpdated, nil

	case DeletedDuplicate:
		paper := newPaper(a.ownerID)
		if err := applyPaperChange(paper, c, related); err != nil {
			return nil, outcomeIgnored, err
		}
		a.fillPDFSize(ctx, paper, c)
		paper.ID = existing.ID
		paper.Version = existing.Version + 1
		paper.CreatedAt = a.now
		paper.UpdatedAt = a.now
		paper.ClientTag = a.clientTag
		if err := a.tx.Papers.Update(ctx, paper); err != nil {
			return nil, outcomeIgnored, err
		}
		a.mapPaper(c, paper.ID)
		return paper, outcomeCreated, nil
	}

	paper := newPaper(a.ownerID)
	if err := applyPaperChange(paper, c, related); err != nil {
		return nil, outcomeIgnored, err
	}
	a.fillPDFSize(ctx, paper, c)
	paper.Version = 1
	paper.CreatedAt = a.now
	paper.UpdatedAt = a.now
	paper.ClientTag = a.clientTag
	if err := a.tx.Papers.Create(ctx, paper); err != nil {
		return nil, outcomeIgnored, err
	}
	a.mapPaper(c, paper.ID)

	return paper, outcomeCreated, nil
}

func (a *changeApplier) updatePaper(ctx context.Context, c *domain.PaperChange) (*domain.Paper, outcome, error) {
	ref := c.Ref()
	id, ok := a.targetID(ref)
	if !ok {
		return nil, outcomeIgnored, ErrNotFound
	}

	paper, err := a.tx.Papers.FindByID(ctx, a.ownerID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, outcomeIgnored, ErrNotFound
	}
	if err != nil {
		return nil, outcomeIgnored, err
	}
	if paper.IsDeleted() {
		return nil, outcomeIgnored, ErrRecordDeleted
	}

	version, err := resolveVersion(c.Version, paper.Version)
	if err != nil {
		return nil, outcomeIgnored, err
	}

	related, err := a.relatedPapers(ctx, c, paper.ID)
	if err != nil {
		return nil, outcomeIgnored, err
	}
	if err := applyPaperChange(paper, c, related); err != nil {
		return nil, outcomeIgnored, err
	}
	a.fillPDFSize(ctx, paper, c)

	paper.Version = version
	paper.UpdatedAt = a.now
	paper.ClientTag = a.clientTag
	if err := a.tx.Papers.Update(ctx, paper); err != nil {
		return nil, outcomeIgnored, err
	}
	a.mapPaper(c, paper.ID)

	return paper, outcomeUpdated, nil
}

func (a *changeApplier) mapPaper(c *domain.PaperChange, id int64) {
	a.reconciler.Map(c.ID, id)
	a.reconciler.Map(c.LocalID, id)
}

// deletePaper soft-deletes a live paper. Missing, foreign and already
// deleted papers are ignored.
func (a *changeApplier) deletePaper(ctx context.Context, ref domain.IDRef) (*domain.Paper, outcome, error) {
	id, ok := a.targetID(ref)
	if !ok {
		return nil, outcomeIgnored, nil
	}

	paper, err := a.tx.Papers.FindByID(ctx, a.ownerID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, outcomeIgnored, nil
	}
	if err != nil {
		return nil, outcomeIgnored, err
	}
	if paper.IsDeleted() {
		return paper, outcomeIgnored, nil
	}

	deletedAt := a.now
	paper.DeletedAt = &deletedAt
	paper.Version++
	paper.UpdatedAt = a.now
	paper.ClientTag = a.clientTag
	if err := a.tx.Papers.Update(ctx, paper); err != nil {
		return nil, outcomeIgnored, err
	}
	a.reconciler.Forget(paper.ID)

	return paper, outcomeDeleted, nil
}

// relatedPapers resolves the related paper list when the change carries
// one. Unresolvable entries and self references are dropped.
func (a *changeApplier) relatedPapers(ctx context.Context, c *domain.PaperChange, self int64) ([]int64, error) {
	if !c.RelatedPaperIDs.Present() {
		return nil, nil
	}

	ids, err := a.reconciler.ResolveAll(ctx, c.RelatedPaperIDs.Value)
	if err != nil {
		return nil, err
	}

	related := ids[:0]
	for _, id := range ids {
		if id != self {
			related = append(related, id)
		}
	}
	return related, nil
}

func (a *changeApplier) fillPDFSize(ctx context.Context, p *domain.Paper, c *domain.PaperChange) {
	if a.pdfs == nil || p.PDFKey == nil || p.PDFSize != nil || !c.PDFKey.Present() {
		return
	}

	size, err := a.pdfs.ObjectSize(ctx, *p.PDFKey)
	if err != nil {
		a.log.WithError(err).WithField("pdf_key", *p.PDFKey).Warn("failed to look up pdf size")
		return
	}
	p.PDFSize = &size
}

func newPaper(ownerID string) *domain.Paper {
	return &domain.Paper{
		OwnerID:         ownerID,
		Authors:         []string{},
		Tags:            []string{},
		Status:          domain.PaperStatusToRead,
		RelatedPaperIDs: []int64{},
	}
}

func normalizeDOI(doi domain.Opt[string]) string {
	if !doi.Present() {
		return ""
	}
	return strings.TrimSpace(doi.Value)
}

func optionalString(o domain.Opt[string]) *string {
	v := strings.TrimSpace(o.Value)
	if !o.Present() || v == "" {
		return nil
	}
	return &v
}

// applyPaperChange copies every field the change carries onto p. Applied
// to a fresh paper it gives put semantics, to a stored one patch semantics.
// related is only used when the change carries relatedPaperIds.
func applyPaperChange(p *domain.Paper, c *domain.PaperChange, related []int64) error {
	if c.Title.Set {
		p.Title = strings.TrimSpace(c.Title.Value)
	}
	if c.Authors.Set {
		p.Authors = nonNil(c.Authors.Value)
	}
	if c.Year.Set {
		p.Year = nil
		if c.Year.Present() {
			year := c.Year.Value
			p.Year = &year
		}
	}
	if c.Journal.Set {
		p.Journal = c.Journal.Value
	}
	if c.DOI.Set {
		p.DOI = optionalString(c.DOI)
	}
	if c.Abstract.Set {
		p.Abstract = c.Abstract.Value
	}
	if c.Tags.Set {
		p.Tags = uniqueStrings(c.Tags.Value)
	}
	if c.Status.Set {
		status := c.Status.Or(domain.PaperStatusToRead)
		if !status.Valid() {
			return &InvalidChangeError{Field: "status", Reason: "unknown value " + string(status)}
		}
		p.Status = status
	}
	if c.RelatedPaperIDs.Set {
		p.RelatedPaperIDs = related
		if p.RelatedPaperIDs == nil {
			p.RelatedPaperIDs = []int64{}
		}
	}
	if c.Notes.Set {
		p.Notes = c.Notes.Value
	}
	if c.PDFKey.Set {
		key := optionalString(c.PDFKey)
		if key == nil || p.PDFKey == nil || *key != *p.PDFKey {
			p.PDFSize = nil
		}
		p.PDFKey = key
	}
	if c.PDFSize.Set {
		p.PDFSize = nil
		if c.PDFSize.Present() {
			size := c.PDFSize.Value
			if size < 0 {
				return &InvalidChangeError{Field: "pdfSize", Reason: "must not be negative"}
			}
			p.PDFSize = &size
		}
	}

	if p.Title == "" {
		return &InvalidChangeError{Field: "title", Reason: "required"}
	}
	return nil
}

func (a *changeApplier) applyCollections(ctx context.Context, changes *domain.EntityChanges[domain.CollectionChange], report *domain.ApplyReport) error {
	for i := range changes.Created {
		c := &changes.Created[i]
		err := a.item(ctx, "collection", report, c.Ref(), func() (outcome, error) {
			return a.createCollection(ctx, c)
		})
		if err != nil {
			return err
		}
	}

	for i := range changes.Updated {
		c := &changes.Updated[i]
		err := a.item(ctx, "collection", report, c.Ref(), func() (outcome, error) {
			return a.updateCollection(ctx, c)
		})
		if err != nil {
			return err
		}
	}

	for _, ref := range changes.Deleted {
		err := a.item(ctx, "collection", report, ref, func() (outcome, error) {
			return a.deleteCollection(ctx, ref)
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (a *changeApplier) createCollection(ctx context.Context, c *domain.CollectionChange) (outcome, error) {
	collection := &domain.Collection{OwnerID: a.ownerID}
	if err := applyCollectionChange(collection, c); err != nil {
		return outcomeIgnored, err
	}
	collection.Version = 1
	collection.CreatedAt = a.now
	collection.UpdatedAt = a.now
	collection.ClientTag = a.clientTag

	if err := a.tx.Collections.Create(ctx, collection); err != nil {
		return outcomeIgnored, err
	}
	return outcomeCreated, nil
}

func (a *changeApplier) updateCollection(ctx context.Context, c *domain.CollectionChange) (outcome, error) {
	id, ok := c.Ref().ServerID()
	if !ok {
		return outcomeIgnored, ErrNotFound
	}

	collection, err := a.tx.Collections.FindByID(ctx, a.ownerID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return outcomeIgnored, ErrNotFound
	}
	if err != nil {
		return outcomeIgnored, err
	}
	if collection.IsDeleted() {
		return outcomeIgnored, ErrRecordDeleted
	}

	version, err := resolveVersion(c.Version, collection.Version)
	if err != nil {
		return outcomeIgnored, err
	}
	if err := applyCollectionChange(collection, c); err != nil {
		return outcomeIgnored, err
	}

	collection.Version = version
	collection.UpdatedAt = a.now
	collection.ClientTag = a.clientTag
	if err := a.tx.Collections.Update(ctx, collection); err != nil {
		return outcomeIgnored, err
	}
	return outcomeUpdated, nil
}

func (a *changeApplier) deleteCollection(ctx context.Context, ref domain.IDRef) (outcome, error) {
	id, ok := ref.ServerID()
	if !ok {
		return outcomeIgnored, nil
	}

	collection, err := a.tx.Collections.FindByID(ctx, a.ownerID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return outcomeIgnored, nil
	}
	if err != nil {
		return outcomeIgnored, err
	}
	if collection.IsDeleted() {
		return outcomeIgnored, nil
	}

	deletedAt := a.now
	collection.DeletedAt = &deletedAt
	collection.Version++
	collection.UpdatedAt = a.now
	collection.ClientTag = a.clientTag
	if err := a.tx.Collections.Update(ctx, collection); err != nil {
		return outcomeIgnored, err
	}
	return outcomeDeleted, nil
}

func applyCollectionChange(col *domain.Collection, c *domain.CollectionChange) error {
	if c.Name.Set {
		col.Name = strings.TrimSpace(c.Name.Value)
	}
	if c.Icon.Set {
		col.Icon = c.Icon.Value
	}
	if c.Color.Set {
		col.Color = c.Color.Value
	}
	if c.Filters.Set {
		filters := c.Filters.Value
		if filters.Status != nil && !filters.Status.Valid() {
			return &InvalidChangeError{Field: "filters.status", Reason: "unknown value " + string(*filters.Status)}
		}
		filters.Tags = uniqueStrings(filters.Tags)
		col.Filters = filters
	}

	if col.Name == "" {
		return &InvalidChangeError{Field: "name", Reason: "required"}
	}
	return nil
}

func (a *changeApplier) applyAnnotations(ctx context.Context, changes *domain.EntityChanges[domain.AnnotationChange], report *domain.ApplyReport) error {
	for i := range changes.Created {
		c := &changes.Created[i]
		err := a.item(ctx, "annotation", report, c.Ref(), func() (outcome, error) {
			return a.createAnnotation(ctx, c)
		})
		if err != nil {
			return err
		}
	}

	for i := range changes.Updated {
		c := &changes.Updated[i]
		err := a.item(ctx, "annotation", report, c.Ref(), func() (outcome, error) {
			return a.updateAnnotation(ctx, c)
		})
		if err != nil {
			return err
		}
	}

	for _, ref := range changes.Deleted {
		err := a.item(ctx, "annotation", report, ref, func() (outcome, error) {
			return a.deleteAnnotation(ctx, ref)
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// annotationPaper resolves the paper an annotation points at. An
// annotation is never stored against a paper that cannot be resolved.
func (a *changeApplier) annotationPaper(ctx context.Context, ref domain.Opt[domain.IDRef]) (int64, error) {
	if !ref.Present() || ref.Value.IsZero() {
		return 0, ErrPaperNotFound
	}

	id, ok, err := a.reconciler.Resolve(ctx, ref.Value)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrPaperNotFound
	}
	return id, nil
}

func (a *changeApplier) createAnnotation(ctx context.Context, c *domain.AnnotationChange) (outcome, error) {
	paperID, err := a.annotationPaper(ctx, c.PaperID)
	if err != nil {
		return outcomeIgnored, err
	}

	annotation := &domain.Annotation{
		OwnerID: a.ownerID,
		PaperID: paperID,
		Type:    domain.AnnotationHighlight,
	}
	if err := applyAnnotationChange(annotation, c); err != nil {
		return outcomeIgnored, err
	}
	annotation.Version = 1
	annotation.CreatedAt = a.now
	annotation.UpdatedAt = a.now
	annotation.ClientTag = a.clientTag

	if err := a.tx.Annotations.Create(ctx, annotation); err != nil {
		return outcomeIgnored, err
	}
	return outcomeCreated, nil
}

func (a *changeApplier) updateAnnotation(ctx context.Context, c *domain.AnnotationChange) (outcome, error) {
	id, ok := c.Ref().ServerID()
	if !ok {
		return outcomeIgnored, ErrNotFound
	}

	annotation, err := a.tx.Annotations.FindByID(ctx, a.ownerID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return outcomeIgnored, ErrNotFound
	}
	if err != nil {
		return outcomeIgnored, err
	}
	if annotation.IsDeleted() {
		return outcomeIgnored, ErrRecordDeleted
	}

	version, err := resolveVersion(c.Version, annotation.Version)
	if err != nil {
		return outcomeIgnored, err
	}

	if c.PaperID.Set {
		paperID, err := a.annotationPaper(ctx, c.PaperID)
		if err != nil {
			return outcomeIgnored, err
		}
		annotation.PaperID = paperID
	}
	if err := applyAnnotationChange(annotation, c); err != nil {
		return outcomeIgnored, err
	}

	annotation.Version = version
	annotation.UpdatedAt = a.now
	annotation.ClientTag = a.clientTag
	if err := a.tx.Annotations.Update(ctx, annotation); err != nil {
		return outcomeIgnored, err
	}
	return outcomeUpdated, nil
}

func (a *changeApplier) deleteAnnotation(ctx context.Context, ref domain.IDRef) (outcome, error) {
	id, ok := ref.ServerID()
	if !ok {
		return outcomeIgnored, nil
	}

	annotation, err := a.tx.Annotations.FindByID(ctx, a.ownerID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return outcomeIgnored, nil
	}
	if err != nil {
		return outcomeIgnored, err
	}
	if annotation.IsDeleted() {
		return outcomeIgnored, nil
	}

	deletedAt := a.now
	annotation.DeletedAt = &deletedAt
	annotation.Version++
	annotation.UpdatedAt = a.now
	annotation.ClientTag = a.clientTag
	if err := a.tx.Annotations.Update(ctx, annotation); err != nil {
		return outcomeIgnored, err
	}
	return outcomeDeleted, nil
}

// applyAnnotationChange copies the fields the change carries, except paperId.
func applyAnnotationChange(an *domain.Annotation, c *domain.AnnotationChange) error {
	if c.Type.Set {
		typ := c.Type.Or(domain.AnnotationHighlight)
		if !typ.Valid() {
			return &InvalidChangeError{Field: "type", Reason: "unknown value " + string(typ)}
		}
		an.Type = typ
	}
	if c.PageNumber.Set {
		an.PageNumber = nil
		if c.PageNumber.Present() {
			page := c.PageNumber.Value
			an.PageNumber = &page
		}
	}
	if c.Position.Set {
		an.Position = nil
		if c.Position.Present() {
			an.Position = c.Position.Value
		}
	}
	if c.Content.Set {
		an.Content = c.Content.Value
	}
	if c.Color.Set {
		an.Color = c.Color.Value
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// uniqueStrings trims, drops empties and removes duplicates, keeping order.
func uniqueStrings(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
