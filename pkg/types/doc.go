/*
Package types defines the core data structures shared by every autopilot
component: parameters and their sliding bounds, metrics analysis, proposed
parameter changes, canary deployments, and cycle records.

# Architecture

The types package is the foundation of the autopilot's data model. It defines:

  - Tunable parameters and their absolute/sliding bounds (pkg/bounds owns these)
  - Metrics analysis output (trend, stability, data quality, opportunities)
  - Proposed parameter changes and their expected impact
  - Canary deployment state, traffic splits, and statistical summaries
  - Cycle records, the append-only audit trail of one control-loop run

All types are plain exported structs with no behavior beyond small value-object
helpers; the components that own a given piece of state (pkg/bounds owns
ParameterBounds, pkg/canary owns ActiveCanaryDeployment) are the only code
permitted to mutate it. Everyone else receives by-value copies through operation
return values.
*/
package types
