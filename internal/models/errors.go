package models

import "errors"

var ErrNoSectionsFetched = errors.New("no war API sections fetched")

func IsNoSectionsFetchedErr(err error) bool { return errors.Is(err, ErrNoSectionsFetched) }

var ErrRunNotFound = errors.New("ingest run not found")

func IsRunNotFoundErr(err error) bool { return errors.Is(err, ErrRunNotFound) }

var ErrInvalidPayload = errors.New("invalid war API payload")

func IsInvalidPayloadErr(err error) bool { return errors.Is(err, ErrInvalidPayload) }
