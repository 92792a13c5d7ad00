package dap

// Unique identifiers for messages returned for errors from requests.
// These values are not mandated by DAP (other than the uniqueness
// requirement), so each implementation is free to choose their own.
const (
	UnsupportedCommand int = 9999
	InternalError      int = 8888
	NotYetImplemented  int = 7777

	// Below mirror the error kinds in spec.md §7.
	FailedToLaunch          = 3000 // BadTrace / MissingSource / IoError at launch
	NotYetInitialized       = 3001 // request arrived before initialize/launch
	UnableToSetBreakpoints  = 2001
	UnableToDisplayThreads  = 2003
	UnableToProduceStackTrace = 2004
	UnableToListScopes      = 2005
	UnableToLookupVariable  = 2008
	UnableToEvaluateExpression = 2009
	UnableToStep            = 2010
	UnableToContinue        = 2011
	UnableToSetConfig       = 2012
)
