package transport

// TagBlob marks an untyped byte blob frame, used by SendBlob/RecvBlob
// and by callers that frame their own payloads out-of-band.
const TagBlob Tag = 0
