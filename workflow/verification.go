package workflow

import (
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"posescope/models"
)

// DecideInput carries a verifier's judgment of one annotation.
type DecideInput struct {
	Decision models.VerificationDecision

	CorrectedKeypoints  datatypes.JSON
	CorrectionSummary   string
	FeedbackToAnnotator string

	OverallQualityScore int
	AnatomicalAccuracy  int
	TechnicalPrecision  int
	CompletenessScore   int
	CertaintyLevel      int

	RejectionReason  models.RejectionReason
	RejectionDetails string
	CanBeReannotated bool

	RequiresSecondOpinion   bool
	VerificationTimeSeconds int
}

// Decide applies a verification decision to a SUBMITTED annotation and
// computes the resulting image and batch transitions. Exactly one
// verification row is ever created per annotation: the claim is a
// compare-and-swap on the annotation status, so of two racing verifiers
// exactly one wins and the other sees ErrAlreadyVerified.
func (s *Service) Decide(annotationID, verifierID string, in DecideInput) (*models.Verification, error) {
	if _, ok := models.ParseVerificationDecision(string(in.Decision)); !ok {
		return nil, constraintf("unknown decision %q", in.Decision)
	}

	verifier, err := s.loadUser(verifierID)
	if err != nil {
		return nil, err
	}
	if !verifier.CanVerify() {
		return nil, constraintf("user %s cannot verify", verifier.ID)
	}

	annotation, err := s.loadAnnotation(annotationID)
	if err != nil {
		return nil, err
	}

	var existing int64
	if err := s.db.Model(&models.Verification{}).
		Where("annotation_id = ?", annotation.ID).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrAlreadyVerified
	}

	if err := s.checkSecondOpinion(annotation, verifierID); err != nil {
		return nil, err
	}

	switch annotation.Status {
	case models.AnnotationSubmitted:
	case models.AnnotationUnderReview, models.AnnotationApproved:
		return nil, ErrAlreadyVerified
	default:
		// Zero verifications exist (checked above), so REVISION_REQUESTED
		// here means the annotation was retired, for example by a batch
		// cancellation, never judged.
		return nil, constraintf("annotation %s is %s, not SUBMITTED", annotation.ID, annotation.Status)
	}

	img, err := s.loadImage(annotation.ImageID)
	if err != nil {
		return nil, err
	}

	verification := &models.Verification{
		ID:                      uuid.NewString(),
		AnnotationID:            annotation.ID,
		VerifierID:              verifier.ID,
		Decision:                in.Decision,
		CorrectedKeypoints:      in.CorrectedKeypoints,
		CorrectionSummary:       in.CorrectionSummary,
		FeedbackToAnnotator:     in.FeedbackToAnnotator,
		OverallQualityScore:     in.OverallQualityScore,
		AnatomicalAccuracy:      in.AnatomicalAccuracy,
		TechnicalPrecision:      in.TechnicalPrecision,
		CompletenessScore:       in.CompletenessScore,
		CertaintyLevel:          in.CertaintyLevel,
		RejectionReason:         in.RejectionReason,
		RejectionDetails:        in.RejectionDetails,
		CanBeReannotated:        in.CanBeReannotated,
		RequiresSecondOpinion:   in.RequiresSecondOpinion,
		VerificationTimeSeconds: in.VerificationTimeSeconds,
	}

	annotationStatus := models.AnnotationRevisionRequested
	imageTarget := models.ImageRequiresRevision
	switch {
	case in.Decision.IsApproved():
		annotationStatus = models.AnnotationApproved
		imageTarget = models.ImageApproved
	case in.Decision.NeedsRevision():
		// Image re-enters the scheduler pool.
	case in.Decision == models.DecisionRejected:
		if !in.CanBeReannotated {
			imageTarget = models.ImageRejected
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Claim the annotation. A racing verifier finds zero rows here,
		// and any later failure in this transaction rolls the claim back
		// so a retry re-checks everything from stored state.
		res := tx.Model(&models.Annotation{}).
			Where("id = ? AND status = ?", annotation.ID, models.AnnotationSubmitted).
			Update("status", models.AnnotationUnderReview)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyVerified
		}

		if err := tx.Create(verification).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Annotation{}).
			Where("id = ?", annotation.ID).
			Update("status", annotationStatus).Error; err != nil {
			return err
		}

		extra := map[string]interface{}{"current_verifier_id": verifier.ID}
		if imageTarget == models.ImageRequiresRevision {
			extra["current_annotator_id"] = nil
		}
		if err := transitionImage(tx, img, models.ImageUnderReview, nil); err != nil {
			return err
		}
		if err := transitionImage(tx, img, imageTarget, extra); err != nil {
			return err
		}

		if in.RequiresSecondOpinion {
			if err := tx.Model(&models.Batch{}).
				Where("id = ?", img.BatchID).
				Update("requires_second_opinion", true).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.User{}).
			Where("id = ?", verifier.ID).
			Update("total_verifications_completed", gorm.Expr("total_verifications_completed + 1")).Error
	})
	if err != nil {
		return nil, err
	}
	annotation.Status = annotationStatus

	log.WithFields(log.Fields{
		"verification": verification.ID,
		"annotation":   annotation.ID,
		"decision":     string(in.Decision),
	}).Info("Verification recorded")

	if _, err := s.RecomputeProgress(img.BatchID); err != nil {
		return nil, err
	}
	return verification, nil
}

// checkSecondOpinion enforces the different-verifier rule: once a
// verification on any version of this image's annotation chain demanded a
// second opinion, the follow-up decision must come from someone else.
func (s *Service) checkSecondOpinion(annotation *models.Annotation, verifierID string) error {
	var priors []models.Verification
	err := s.db.
		Joins("JOIN annotations ON annotations.id = verifications.annotation_id").
		Where("annotations.image_id = ? AND verifications.requires_second_opinion = ?", annotation.ImageID, true).
		Order("verifications.verified_at DESC").
		Limit(1).
		Find(&priors).Error
	if err != nil {
		return err
	}
	if len(priors) > 0 && priors[0].VerifierID == verifierID {
		return ErrSameVerifierConflict
	}
	return nil
}
