/*
Package ports defines the driven ports (interfaces) of the questionnaire engine.

These interfaces decouple the graph, validation, wizard and editor packages
from storage and transport, so the same core runs over SQLite, Redis or
plain memory.

# Key Interfaces

  - QuestionStore: persists questions and their conditional edges.
  - EdgeReplacer: optional atomic replacement of a question's edge list.
  - ResponseService: the authoritative "next main question" decision and batch submit.
  - Bootstrap: loads the initial question set of a fresh wizard session.
  - SessionStore: persists wizard snapshots between requests.
  - DistributedLocker: coordinates editor commits and session access across replicas.
*/
package ports
