package comps

import "errors"

// ErrNoTransactionsDataset means resource discovery found no usable
// transactions dataset across all candidate catalog queries.
var ErrNoTransactionsDataset = errors.New("no transactions dataset found")
