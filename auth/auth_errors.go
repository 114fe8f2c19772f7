package auth

import "errors"

var (
	MissingClientErr    = errors.New("http client is required")
	MissingStoreErr     = errors.New("session store is required")
	MissingRefresherErr = errors.New("refresher is required")
	MissingLimiterErr   = errors.New("rate limiter is required")
	EmptyTokenPairErr   = errors.New("refresh response carried no access token")
)
