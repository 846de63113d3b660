package apiclient

import "github.com/christlandtech/storefront-client/internal/apierror"

// ResponseError is returned by the JSON helpers when the API answers with a
// status outside 2xx, or with a body that is not JSON. Its message prefers the
// body's error or detail field over the bare "HTTP <status>".
type ResponseError = apierror.Error
