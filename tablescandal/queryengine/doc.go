/*
package queryengine runs row queries against a TableHandle.

A query can be evaluated in two places:

  - client-side: every row is pulled from the store and tested here by a compiled Go MatchFunc (ScanClientSide).
    Rows are streamed, so memory use does not grow with the size of the table.
  - store-side: the filter is handed to the store, which evaluates it itself (ScanStoreSide). The store may skip
    row groups using statistics, or push the filter down to SQL. Results are streamed, or materialized up front.

Query.Run picks between these by Strategy. Strategies differ only in performance: for the same query
they all return the same rows.
*/
package queryengine
