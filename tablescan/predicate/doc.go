/*
package predicate holds the boolean expressions used to filter table rows.

A predicate is a tree of filters: ComparativeFilter leaves (<column> <op> <number>) joined by
LogicalFilter nodes (& or |). The same tree is used three ways:

  - Compile turns it into a MatchFunc evaluated row by row in the caller (client-side scans).
  - Stores evaluate it themselves (store-side scans). ShouldRowGroupBeScanned lets a store skip whole
    chunks of rows using min/max statistics, and ToSQL renders it for SQL databases.
  - String renders it back to text that Parse accepts.

Text expressions are parsed with Parse. A two-sided range must be written as a conjunction,
"(60 < heart_rate) & (heart_rate < 70)"; "60 < heart_rate < 70" is rejected with an InvalidPredicate error.
*/
package predicate
