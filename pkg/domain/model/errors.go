package model

import "errors"

var (
	ErrCourseNotFound               = errors.New("course not found")
	ErrPurchaseNotFound             = errors.New("purchase not found")
	ErrMissingParameters            = errors.New("course id and user id are required")
	ErrInvalidID                    = errors.New("invalid id")
	ErrPaymentSessionCreationFailed = errors.New("error while creating session")
	ErrVerification                 = errors.New("webhook signature verification failed")
	ErrAlreadyPurchased             = errors.New("course already purchased")
	ErrInvalidStatusTransition      = errors.New("purchase cannot change from its current status")
	ErrPersistence                  = errors.New("storage operation failed")
)
