package graph

const extractionSystemPrompt = `You extract a knowledge graph from technical documentation.

Identify entities of exactly these types:
- hardware: physical components, devices, modules, connectors, sensors
- software: programs, firmware, drivers, services, protocols
- configuration: settings, parameters, modes, calibration values
- error: fault conditions, error codes, failure modes, warnings

Identify relationships of exactly these types:
- depends_on: one entity requires another to function
- configures: a configuration item applies to an entity
- connects_to: a physical or logical link between entities
- is_part_of: an entity is a component of another

Rules:
- Only extract entities that are actually discussed, not merely mentioned in passing.
- Use the name exactly as the document writes it.
- When the text states that an entity is a component of a larger extracted entity, set its parent to that entity's name. Leave parent empty otherwise.
- Every relationship must reference extracted entities by name.
- Keep descriptions to one sentence.
- Return empty lists when the text contains no technical entities.`

const extractionPromptTemplate = `Extract entities and relationships from the following excerpt of %q:

%s`

const queryEntityPromptTemplate = `Extract the technical entities mentioned in the following question. Return relationships only when the question states them explicitly.

%s`
